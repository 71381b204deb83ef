// Package vm implements a small embeddable class runtime with opt-in
// non-virtual (statically bound) methods.
//
// This package contains:
//   - Classes with single inheritance, vtable-based member lookup and
//     instance variable slots
//   - Method descriptors for plain methods, static methods, property
//     accessors and hooks
//   - The class builder that stamps owning class and binding on every member
//   - Call-site resolution over explicit activation records (Context)
//   - Attribute get/set/delete and hook interception that binds non-virtual
//     members to the calling class's view
//   - A per call-site dispatch cache and tracing of resolutions
//
// Method bodies are Go functions receiving the *Context of their own
// activation. Every send, attribute access and hook invocation made from a
// body goes through that context, which is how the runtime knows which
// class's code is asking.
package vm
