// Package mediaparser exposes the outputs of an asynchronous GStreamer decode
// graph as pull-based elementary streams.
//
// The engine pushes buffers and control events from its own worker threads.
// Each Stream owns a one-slot mailbox that turns that push delivery into a
// blocking Read, with at most one item pending per stream.
//
// Key pieces include:
//   - Parser and Stream (create, enable/disable, read, seek, close)
//   - Four graph strategies: decodebin, container demuxer, frame parser,
//     container parser
//   - Format and Caps translation with an extensible family table
//   - SampleForwarder for sending compressed streams over RTP
//
// # Architecture
//
//	Source -> [demux/decode] -> [post-processing chain] -> sink -> mailbox -> Read
//
// Raw video outputs get deinterlace, convert, vertical flip and convert
// stages; raw audio outputs get a convert stage. Compressed outputs link
// directly.
//
// # Native Libraries
//
// With CGO enabled the package uses the go-gst bindings. With CGO_ENABLED=0
// it loads libgstreamer-1.0 and libgstapp-1.0 through purego. Set
// MEDIAPARSER_GST_LIB_PATH / MEDIAPARSER_GST_APP_LIB_PATH to the library
// files, or GST_SDK_LIB_PATH to the directory containing them.
//
// # Build Tags
//
//   - nogst: build without any native engine (Config.Engine must be set)
//
// # Cancellation
//
// Construction and Read wait without a timeout. Pass a cancellable context to
// bound them.
package mediaparser
