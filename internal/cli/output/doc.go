// Package output renders glovectl results and feedback.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: table rendering of structs, records and maps
//   - json.go, yaml.go: machine-readable output
//   - spinner.go: in-flight indicator shared by concurrent calls
//   - progress.go: transfer progress bar
//   - notice.go: colored user notices on stderr
package output
