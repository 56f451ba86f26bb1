// Package bean implements observable property stores.
//
// A Store is built from a defaults map that fixes its schema. Properties
// are read with Get and written with Set; a Set that changes a value
// notifies the property's listeners synchronously, in registration order.
//
// Listeners may be registered under a source tag so that a component can
// drop all of its registrations at once with RemoveAllForSource.
//
// A Store can mirror itself to two optional backends:
//
//   - a local key-value backend holding type-tagged overrides of the
//     defaults (see Encode and Decode), restored at construction;
//   - a remote synced backend receiving debounced full snapshots (see
//     EnableSync).
package bean
