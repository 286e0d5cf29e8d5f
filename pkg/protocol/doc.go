// Package protocol implements the LuxBus wire grammar.
//
// LuxBus is an ASCII command protocol spoken over RS-232 (9600 baud, 8-N-1
// by default). Every command is a single carriage-return terminated line
// with space-separated fields:
//
//	Query:  " 18 MM-O"      -> reply "18 VVV"
//	Set:    " 10 MM-O VVV"
//
// MM-O addresses a single load: module number (01-99) and output number
// (1-9), e.g. "01-1". VVV is a zero-padded three-digit raw value: 000/001
// for relay loads, 000-250 for dimmer loads.
//
// Replies never repeat the load address; they only echo the command code.
// Correlating a reply back to the load it describes is the transport
// layer's job (see pkg/transport) and relies on the address captured from
// the query that was on the wire when the reply arrived.
package protocol
