package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodbeats/internal/capture"
	"github.com/desertthunder/moodbeats/internal/playlist"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgCaptureStarted MsgKind = iota
	MsgCaptureEvent
	MsgCaptureClosed
	MsgFlowDone
	MsgAlert
)

type flowResult struct {
	action playlist.Action
	err    error
}

// captureStartedMsg is the constructor for [MsgCaptureStarted]
func captureStartedMsg(err error) Msg {
	return Msg{kind: MsgCaptureStarted, data: err}
}

// captureEventMsg is the constructor for [MsgCaptureEvent]
func captureEventMsg(ev capture.Event) Msg {
	return Msg{kind: MsgCaptureEvent, data: ev}
}

// captureClosedMsg is the constructor for [MsgCaptureClosed]
func captureClosedMsg() Msg {
	return Msg{kind: MsgCaptureClosed}
}

// flowDoneMsg is the constructor for [MsgFlowDone]
func flowDoneMsg(action playlist.Action, err error) Msg {
	return Msg{kind: MsgFlowDone, data: flowResult{action, err}}
}

// alertMsg is the constructor for [MsgAlert]
func alertMsg(text string) Msg {
	return Msg{kind: MsgAlert, data: text}
}
