// Package errors provides structured, actionable error messages for vnative.
//
// Errors carry a registered code, a category, an explanation and an optional
// hint. Configuration errors can also point at the offending line of
// vnative.yaml, in which case the surrounding lines are shown.
//
// # Error Categories
//
//   - registry: view type and property declaration errors
//   - bridge: native call failures surfaced to tooling
//   - protocol: wire protocol and handshake errors
//   - config: vnative.yaml errors
//   - devkit: development channel errors
//   - cli: command line usage errors
//
// # Usage
//
//	err := errors.New("E101").
//	    WithDetail(`type "Text" declares "textSize" twice`).
//	    WithSuggestion("Remove the duplicate property descriptor")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E101: Duplicate property
//	//
//	//   type "Text" declares "textSize" twice
//	//
//	//   Hint: Remove the duplicate property descriptor
package errors
