// Package ui implements the live terminal dashboard using bubbletea's Elm architecture.
//
// The dashboard shows one screen with three panels:
//  1. Capture : camera and model readiness, the latest emotion and the last upload outcome
//  2. Playlists : the state of the analyze, preview and generate actions and the shared mood snapshot
//  3. Recommendations : the tracks returned by the last preview, as a scrollable list
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Capture events and playlist alerts arrive on channels and are turned into messages one at a time, so neither blocks rendering.
//
// Keys: a analyze, p preview, g generate, esc dismiss the alert banner, q quit. Help is displayed via charmbracelet/bubbles/help.
package ui
