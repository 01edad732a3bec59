package transport

import (
	"bytes"
	"net/http"
)

// BlockType describes the kind of anti-bot page detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockRateLimit  BlockType = "rate_limit"
	BlockJSShell    BlockType = "js_shell"
)

// smallPage bounds the body size under which captcha and shell markers are
// trusted; real business sites often embed a captcha widget on a contact form.
const smallPage = 20 * 1024

// DetectBlock inspects a response for signs of anti-bot protection.
func DetectBlock(status int, header http.Header, body []byte) (bool, BlockType) {
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		if header.Get("cf-ray") != "" || header.Get("cf-mitigated") != "" ||
			bytes.EqualFold([]byte(header.Get("server")), []byte("cloudflare")) {
			return true, BlockCloudflare
		}
	}

	lower := bytes.ToLower(body)

	if bytes.Contains(lower, []byte("checking your browser")) ||
		bytes.Contains(lower, []byte("cf-browser-verification")) ||
		bytes.Contains(lower, []byte("cf-challenge")) {
		return true, BlockCloudflare
	}

	if bytes.Contains(lower, []byte("unusual traffic from your computer network")) ||
		bytes.Contains(lower, []byte("/sorry/index")) {
		return true, BlockRateLimit
	}

	if len(body) < smallPage {
		if bytes.Contains(lower, []byte("captcha")) {
			return true, BlockCaptcha
		}
		if len(body) < 2000 {
			if bytes.Contains(lower, []byte("<noscript")) && bytes.Contains(lower, []byte("enable javascript")) {
				return true, BlockJSShell
			}
			if bytes.Contains(lower, []byte(`http-equiv="refresh"`)) {
				return true, BlockJSShell
			}
		}
	}

	return false, BlockNone
}
