// Package output renders command results in the formats selectable with
// --output. Renderers are looked up by name in a [Registry]; the
// [DefaultRegistry] knows json and yaml, and commands register their own
// human-readable table renderer on top.
package output
