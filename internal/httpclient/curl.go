package httpclient

import (
	"net/http"
	"os"
	"strings"

	"github.com/blueberrycongee/aiproxy/internal/secret"
)

// debugEnvVar enables request dumps. Level 2 prints a curl equivalent of
// every outgoing request with credentials masked.
const debugEnvVar = "AIPROXY_DEBUG_HTTP"

func (c *Client) debugCurl(req *http.Request, payload []byte) {
	if os.Getenv(debugEnvVar) != "2" {
		return
	}

	var b strings.Builder
	b.WriteString("curl -X ")
	b.WriteString(req.Method)
	b.WriteString(" '")
	b.WriteString(req.URL.String())
	b.WriteString("'")

	for name, values := range req.Header {
		for _, v := range values {
			switch {
			case strings.EqualFold(name, "Authorization"):
				v = secret.MaskAuthorization(v)
			case strings.EqualFold(name, "X-Api-Key"),
				strings.EqualFold(name, "Api-Key"):
				v = secret.MaskToken(v)
			}
			b.WriteString(" -H '")
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("'")
		}
	}

	if len(payload) > 0 {
		b.WriteString(" -d '")
		b.Write(payload)
		b.WriteString("'")
	}

	c.logger.Info("http debug", "curl", b.String())
}
