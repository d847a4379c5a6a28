package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowAPIKeyGuide writes instructions for finding a site's API key
func ShowAPIKeyGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "BOORU API KEY GUIDE")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Most sites serve public posts without credentials. An API key lifts")
	fmt.Fprintln(w, "rate limits and unlocks tag searches that need an account.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Danbooru and other paginated (posts.json) sites:")
	fmt.Fprintln(w, "   1. Log in and open your profile page")
	fmt.Fprintln(w, "   2. Select 'API Key' and create a key")
	fmt.Fprintln(w, "   3. Username is your login name; it is sent with the key as HTTP basic auth")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Gelbooru, Safebooru and other DAPI (index.php) sites:")
	fmt.Fprintln(w, "   1. Log in and open 'My Account' > 'Options'")
	fmt.Fprintln(w, "   2. Find 'API Access Credentials'")
	fmt.Fprintln(w, "   3. Use the user_id value as username and api_key as the key")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Keys are stored per site host in the system keyring, or in an")
	fmt.Fprintln(w, "encrypted file when no keyring is available.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
