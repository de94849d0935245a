// Package inspect walks tagged buffers structurally, without knowing the
// encoded type. A push parser emits callbacks in one linear pass;
// Inspect layers a navigable ObjectInfo tree on top, optionally resolved
// against a declared schema.
package inspect
