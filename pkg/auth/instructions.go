package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowSessionImportGuide explains how to copy an existing browser session
// into the cookies file instead of logging in with a password
func ShowSessionImportGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	lines := []string{
		rule,
		"X SESSION IMPORT GUIDE",
		rule,
		"",
		"A password login can trigger extra verification on X. If that happens,",
		"reuse the session from a browser where you are already logged in:",
		"",
		"STEP 1: Open https://x.com in your browser and log in.",
		"STEP 2: Open Developer Tools (F12, or Cmd+Option+I on Mac).",
		"STEP 3: Application tab (Chrome) or Storage tab (Firefox) -> Cookies -> https://x.com",
		"STEP 4: Copy the values of these two cookies:",
		"",
		"   auth_token   40 hex characters",
		"   ct0          long hex string, also sent as the x-csrf-token header",
		"",
		"STEP 5: Run: xscraper auth import-session --auth-token <auth_token> --ct0 <ct0>",
		"",
		"These cookies give full access to the account. Never share them;",
		"the session file is written with 0600 permissions.",
		rule,
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
