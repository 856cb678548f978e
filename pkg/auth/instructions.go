package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide explains how to copy the session cookies and, optionally,
// a HAR file that lets the exporter find the endpoint without guessing.
func WriteCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 78)
	lines := []string{
		rule,
		"📚 KIDSNOTE SESSION GUIDE",
		rule,
		"",
		"The exporter reuses the session of a browser that is signed in to kidsnote.",
		"",
		"🌐 STEP 1: Sign in",
		"   - Open https://www.kidsnote.com and sign in as the parent",
		"   - Open the album or report list for your child once",
		"",
		"🔧 STEP 2: Open Developer Tools (F12, or Cmd+Option+I on Mac)",
		"",
		"🍪 STEP 3: Copy the cookies",
		"   - Application (Chrome) or Storage (Firefox) tab → Cookies → https://www.kidsnote.com",
		"   - Copy the values of:",
		"       sessionid   (required)",
		"       csrftoken   (recommended)",
		"   - Or copy the whole 'Cookie:' request header from any request in the Network tab;",
		"     'knexport auth login' accepts either form",
		"",
		"📡 OPTIONAL: Save a HAR file",
		"   - In the Network tab, right-click → 'Save all as HAR'",
		"   - Pass it with --har so the exporter reuses the exact album/report request",
		"     the site made, including your child id",
		"",
		"⚠️  The session gives full access to the parent account. Never share it.",
		"   Saved sessions are kept in the system keychain or an encrypted file.",
		rule,
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// WriteQuickGuide is the one-paragraph version shown before prompting.
func WriteQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "🍪 F12 → Application → Cookies → www.kidsnote.com: copy sessionid (and csrftoken)")
	fmt.Fprintln(w, "   You can also paste a full 'Cookie:' header. Run 'knexport auth guide' for details.")
}
