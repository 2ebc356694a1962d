// Package manager is the composition root of the chat core. It builds the
// model session, the conversation log and the request pipeline at start,
// wires "model change resets the conversation", and tears them down at
// shutdown. Front-ends (HTTP, terminal) talk to the core only through it.
//
// Files by concern:
//
//   - config.go: Config and package defaults.
//   - manager.go: Manager type, constructor, lifecycle.
//   - ops.go: model selection and chat operations.
//   - status_report.go: Status and DTO conversion for front-ends.
package manager
