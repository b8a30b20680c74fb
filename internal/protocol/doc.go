// Package protocol defines the messages exchanged between the pybox CLI and
// the pybox daemon.
//
// Every message is a single JSON [Envelope] terminated by a newline. The
// envelope names a [Command] and carries its payload as raw JSON, decoded
// by the receiver with [DecodePayload] once the command is known. Responses
// reuse the envelope with [CmdOK] or [CmdError].
package protocol
