package pypi

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"

	"github.com/artipie/artipie/internal/hubmodule"
)

const (
	simpleJSONType = "application/vnd.pypi.simple.v1+json"
	simpleHTMLType = "text/html; charset=utf-8"
)

// linkAttrs 是 PEP 503/658 页面里可能携带文件地址的属性。
var linkAttrs = map[string]struct{}{
	"href":                    {},
	"data-dist-info-metadata": {},
	"data-core-metadata":      {},
}

func rewriteResponse(
	ctx *hubmodule.RequestContext,
	status int,
	headers map[string]string,
	body []byte,
	path string,
) (int, map[string]string, []byte, error) {
	if path != "/" && !strings.HasPrefix(path, "/simple") {
		return status, headers, body, nil
	}
	if headers == nil {
		headers = map[string]string{}
	}
	var (
		out []byte
		err error
	)
	if isJSONIndex(headers["Content-Type"], body) {
		out, err = rewriteJSONIndex(body, ctx.Domain)
		headers["Content-Type"] = simpleJSONType
	} else {
		out, err = rewriteHTMLIndex(body, ctx.Domain)
		headers["Content-Type"] = simpleHTMLType
	}
	if err != nil {
		return status, headers, body, err
	}
	delete(headers, "Content-Encoding")
	return status, headers, out, nil
}

func isJSONIndex(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), simpleJSONType) {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("{"))
}

func rewriteJSONIndex(body []byte, domain string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	raw, ok := doc["files"]
	if !ok {
		return body, nil
	}
	var files []map[string]any
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, err
	}
	for _, file := range files {
		if link, ok := file["url"].(string); ok {
			file["url"] = hubmodule.MirrorURL(domain, filesPrefix, link)
		}
	}
	encoded, err := json.Marshal(files)
	if err != nil {
		return nil, err
	}
	doc["files"] = encoded
	return json.Marshal(doc)
}

func rewriteHTMLIndex(body []byte, domain string) ([]byte, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for i := range n.Attr {
				if _, ok := linkAttrs[n.Attr[i].Key]; ok {
					n.Attr[i].Val = hubmodule.MirrorURL(domain, filesPrefix, n.Attr[i].Val)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
