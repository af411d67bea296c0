// Package resp implements the wire format spoken between rKV clients and key-value
// servers: RESP2 and RESP3. Requests are encoded as arrays of bulk strings, replies
// are decoded into a single tagged Frame type.
//
// The package focuses on:
//   - Bit-exact encoding of requests (identical for both revisions)
//   - Decoding every reply kind of RESP2 and RESP3 from a fragmented byte stream
//   - Treating every malformed or truncated frame as a fatal protocol error
//
// Key Components:
//
//   - Frame: Tagged sum type over status, error, integer, bulk, null, double,
//     boolean, big number, verbatim, array, set, map and push frames. Attribute
//     frames are attached to the frame that follows them (Frame.Attrs).
//
//   - Decoder: bufio based reader that dispatches on the leading type tag. RESP2
//     accepts only + - : $ *. Null bulk strings, null arrays and the RESP3 null
//     all decode to KindNull. Duplicate map keys are resolved last-write-wins.
//
//   - AppendCommand / EncodeCommand: request encoding. Commands with a declared
//     key count get the count inserted after the script body.
//
//   - AppendFrame / EncodeFrame: reply encoding, mainly used by tests and tools.
//     RESP3 kinds are downgraded for revision 2.
//
//   - IProtocolCodec: One codec per revision (NewRESP2Codec, NewRESP3Codec).
//
// Thread Safety:
//
//	Codecs are stateless and safe for concurrent use. A Decoder owns a buffered
//	reader and must only be used by one goroutine at a time.
package resp
