package extractor

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// netrcMachine is the extractor key yt-dlp looks up in a netrc file
const netrcMachine = "instagram"

// credentialFile writes contents to a temp file only the current user can
// read. The caller must run cleanup once the command has exited.
func credentialFile(pattern string, contents []byte) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create credential file: %w", err)
	}
	path = f.Name()
	cleanup = func() { os.Remove(path) }

	if err := f.Chmod(0600); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("protect credential file: %w", err)
	}
	if _, err := f.Write(contents); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write credential file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write credential file: %w", err)
	}
	return path, cleanup, nil
}

// netrcEntry renders a single netrc machine line for yt-dlp
func netrcEntry(username, password string) []byte {
	return []byte(fmt.Sprintf("machine %s login %s password %s\n",
		netrcMachine, netrcToken(username), netrcToken(password)))
}

func netrcToken(s string) string {
	if strings.ContainsAny(s, " \t\n\"\\") {
		return strconv.Quote(s)
	}
	return s
}

// galleryConfig renders a gallery-dl config file holding the login
func galleryConfig(username, password string) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"extractor": map[string]interface{}{
			"instagram": map[string]string{
				"username": username,
				"password": password,
			},
		},
	})
}

// parseLogin reads the login back out of a netrc entry or a gallery-dl
// config file
func parseLogin(contents []byte) (username, password string) {
	var cfg struct {
		Extractor map[string]struct {
			Username string `json:"username"`
			Password string `json:"password"`
		} `json:"extractor"`
	}
	if json.Unmarshal(contents, &cfg) == nil {
		ig := cfg.Extractor[netrcMachine]
		return ig.Username, ig.Password
	}

	fields := strings.Fields(string(contents))
	for i := 0; i < len(fields)-1; i++ {
		value := fields[i+1]
		if unquoted, err := strconv.Unquote(value); err == nil {
			value = unquoted
		}
		switch fields[i] {
		case "login":
			username = value
		case "password":
			password = value
		}
	}
	return username, password
}
