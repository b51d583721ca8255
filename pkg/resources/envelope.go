package resources

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opsforge/maas-mcp/pkg/cache"
)

const (
	mimeJSON = "application/json"
	mimeXML  = "application/xml"
)

// Envelope is the uniform response wrapper handed back to callers: the
// serialized body plus the headers recomputed for this read.
type Envelope struct {
	URI      string
	Body     string
	MIMEType string
	Headers  map[string]string
}

// buildEnvelope renders a payload as an envelope. A cached entry contributes
// its age; a fresh fetch carries no Age header. The requested format is
// honored when supported and silently falls back to JSON otherwise.
func buildEnvelope(uri string, payload json.RawMessage, format string, control cache.Directives, entry *cache.Entry, now time.Time) *Envelope {
	body := string(payload)
	mimeType := mimeJSON

	if strings.EqualFold(format, "xml") {
		if rendered, err := renderXML(payload); err == nil {
			body = rendered
			mimeType = mimeXML
		}
	}

	headers := map[string]string{
		"Content-Type": mimeType,
		"ETag":         etag(body),
	}
	if cc := control.Header(); cc != "" {
		headers["Cache-Control"] = cc
	}
	if entry != nil {
		headers["Age"] = strconv.Itoa(entry.Age(now))
	}

	return &Envelope{URI: uri, Body: body, MIMEType: mimeType, Headers: headers}
}

func etag(body string) string {
	h := fnv.New64a()
	h.Write([]byte(body))
	return fmt.Sprintf("%q", strconv.FormatUint(h.Sum64(), 16))
}

// renderXML converts an arbitrary JSON payload into a simple XML document.
// Objects become child elements (keys sorted for stable output), arrays
// become repeated <item> elements.
func renderXML(payload json.RawMessage) (string, error) {
	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<resource>")
	if err := writeXMLValue(&b, data); err != nil {
		return "", err
	}
	b.WriteString("</resource>")
	return b.String(), nil
}

func writeXMLValue(b *strings.Builder, value any) error {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			name := xmlElementName(k)
			b.WriteString("<" + name + ">")
			if err := writeXMLValue(b, v[k]); err != nil {
				return err
			}
			b.WriteString("</" + name + ">")
		}
	case []any:
		for _, item := range v {
			b.WriteString("<item>")
			if err := writeXMLValue(b, item); err != nil {
				return err
			}
			b.WriteString("</item>")
		}
	case nil:
		// empty element
	case string:
		return xml.EscapeText(b, []byte(v))
	default:
		return xml.EscapeText(b, []byte(fmt.Sprintf("%v", v)))
	}
	return nil
}

// xmlElementName coerces a JSON key into a safe XML element name.
func xmlElementName(key string) string {
	var b strings.Builder
	for i, r := range key {
		valid := r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(i > 0 && r >= '0' && r <= '9')
		if valid {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "field"
	}
	return b.String()
}
