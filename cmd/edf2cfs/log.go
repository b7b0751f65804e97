package main

import (
	"fmt"
	"html"
	"os"
	"time"

	"github.com/amiyapatanaik/edf2cfs"
)

// htmlLog renders the conversion log as a standalone HTML page,
// written incrementally after each batch joins.
type htmlLog struct {
	f *os.File
}

func newHTMLLog(path string, sel edf2cfs.ChannelSelection) (*htmlLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	l := &htmlLog{f: f}
	fmt.Fprint(f, "<!doctype html>\n<html lang='en'>\n<head>\n"+
		"<meta charset='utf-8'>\n\n  <title>EDF to CFS Log</title>\n"+
		"<meta name='description' content='Conversion Log'>\n"+
		"</head>\n\n<body>\n")
	fmt.Fprintf(f, "<p>Logging started at: %s<br />\n", time.Now().Format("02-Jan-2006-1504"))
	fmt.Fprintf(f, "C3-A2 Channel Label: %s<br />\n", html.EscapeString(sel.C3))
	fmt.Fprintf(f, "C4-A1 Channel Label: %s<br />\n", html.EscapeString(sel.C4))
	fmt.Fprintf(f, "EL-A2 Channel Label: %s<br />\n", html.EscapeString(sel.EL))
	fmt.Fprintf(f, "ER-A1 Channel Label: %s<br />\n", html.EscapeString(sel.ER))
	fmt.Fprint(f, "</p><hr>\n")
	return l, nil
}

// LogResult writes one file's diagnostic stream as a paragraph.
func (l *htmlLog) LogResult(res edf2cfs.Result) {
	lines := res.Diag.Lines()
	fmt.Fprint(l.f, "<p>")
	for i, line := range lines {
		escaped := html.EscapeString(line)
		if !res.Ok() && i == len(lines)-1 {
			fmt.Fprintf(l.f, "<strong style='color:red;'>%s</strong><br />\n", escaped)
		} else {
			fmt.Fprintf(l.f, "%s<br />\n", escaped)
		}
	}
	fmt.Fprint(l.f, "</p>\n")
}

// LogSummary writes the aggregate counters.
func (l *htmlLog) LogSummary(files, seconds, succeeded, failed int) {
	fmt.Fprintf(l.f, "%d Files processed in %d seconds.<br />\n", files, seconds)
	fmt.Fprintf(l.f, "%d Files converted successfully. %d Files could not be converted.<br />\n", succeeded, failed)
}

// Close finalises the document.
func (l *htmlLog) Close() error {
	fmt.Fprint(l.f, "</body>\n</html>\n")
	return l.f.Close()
}
