package tui

import (
	"fmt"
	"io"

	"github.com/nachoal/gemini-chat-go/tui/styles"
)

// PrintHeader prints the chat header before the program starts
func PrintHeader(w io.Writer, st *styles.Styles, model, imageDir string, verbose bool) {
	verboseIndicator := ""
	if verbose {
		verboseIndicator = " | " + st.Verbose.Render("[VERBOSE]")
	}

	header1 := fmt.Sprintf("%s | Model: %s | Images: %s%s",
		st.Title.Render("Gemini Chat"),
		st.Model.Render(model),
		st.Model.Render(imageDir),
		verboseIndicator)

	header2 := st.Help.Render("Commands: /help, /model, /status, /trace, /clear, /exit")

	fmt.Fprintln(w, header1)
	fmt.Fprintln(w, header2)
	fmt.Fprintln(w)
}
