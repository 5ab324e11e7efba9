package tui

// Key binding constants used in handleKey.
const (
	KeyCtrlC     = "ctrl+c"
	KeyEsc       = "esc"
	KeyEnter     = "enter"
	KeyBackspace = "backspace"
	KeyCtrlU     = "ctrl+u"
	KeyCtrlN     = "ctrl+n"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyPgUp      = "pgup"
	KeyPgDown    = "pgdown"
)
