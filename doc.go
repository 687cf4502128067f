// Package studio is the core of a broadcast studio: it composes live and
// still sources into one video surface and mixes their audio into one feed.
//
// Key pieces include:
//   - Compositor: an ordered layer list rendered to a fixed-rate surface,
//     with filters, z-order changes and named presets
//   - PlacementEngine: drag, wheel and resize gestures that commit
//     fit-to-box geometry to layers, with collision and guide feedback
//   - Router: a graph of gain nodes between endpoints, one loudness
//     analyzer per connection, and a recorder endpoint feeding the mix bus
//   - Studio: the source lifecycle tying both together and the composed
//     output stream
//
// # Architecture
//
//	Video: VideoSource -> SourcePipeline -> VideoSourceDrawable -> Layer -> Compositor -> SurfaceTrack
//	Audio: AudioSource -> SourcePipeline -> GainNode -> ... -> recorder -> MixBus -> MixTrack
//	Meter: GainNode -> Tap -> LoudnessAnalyzer -> Broadcaster -> subscribers
//
// Removing a source stops its streams, releases its endpoint and
// connections, removes its layer and drops any gesture bound to it. Each
// step runs even if another fails.
//
// # Errors
//
// Operations return *Error values carrying a Code; match them with
// errors.Is against the Err* sentinels or with IsCode.
//
// Presets are persisted by the presetstore package; meterfeed serves
// loudness levels over HTTP and websockets.
package studio
