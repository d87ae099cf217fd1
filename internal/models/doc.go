// Package models defines the domain types shared by the moodbeats client.
//
// The package contains three categories of types:
//
// 1. Capture types produced on every tick of the capture loop
//   - [ExpressionSample] : label to probability map emitted by the classifier
//   - [Emotion] : the dominant label with its confidence percentage
//   - [SyncRecord] : the upload body for the remote emotion store
//
// 2. Remote API payloads, decoded strictly and checked with Validate
//   - [MoodAnalysis], [Recommendations], [GenerationResult], [TextEmotion]
//
// 3. Local entities persisted in SQLite
//   - [JournalEntry] : one upload attempt and its [Outcome]
//
// [Readiness] is the small state machine used for camera, model and playlist request state.
package models
