package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
)

type htmlOptions struct {
	Template string `koanf:"template"`
	Filename string `koanf:"filename"`
	Title    string `koanf:"title"`
	// body, head or none; with none the template places {{.Tags}} itself
	Inject string `koanf:"inject"`
}

type htmlPlugin struct {
	opts htmlOptions
}

func newHTMLPlugin(options map[string]any) (Plugin, error) {
	opts := htmlOptions{Filename: "index.html", Inject: "body"}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	if opts.Template == "" {
		return nil, errors.New("template is required")
	}
	switch opts.Inject {
	case "body", "head", "none":
	default:
		return nil, fmt.Errorf("unknown inject %q", opts.Inject)
	}
	return &htmlPlugin{opts: opts}, nil
}

func (h *htmlPlugin) Name() string { return "html" }

func (h *htmlPlugin) Stage() Stage { return StageDocument }

type pageData struct {
	Title  string
	Assets *PageAssets
	Mode   string
	Tags   template.HTML
}

func (h *htmlPlugin) AfterBuild(ctx context.Context, out *BuildOutput) error {
	page, err := out.Metadata.LoadScripts(out.Config.Entry, out.Config.Outdir, out.Config.PublicPath)
	if err != nil {
		return err
	}

	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
	}

	templatePath := filepath.Join(out.Root, h.opts.Template)
	tmpl, err := template.New(filepath.Base(templatePath)).Funcs(funcs).ParseFiles(templatePath)
	if err != nil {
		return err
	}

	headTags, bodyTags := renderTags(page, out.ExtraScripts)

	data := pageData{
		Title:  h.opts.Title,
		Assets: page,
		Mode:   out.Config.Mode,
		Tags:   template.HTML(headTags + bodyTags), //nolint:gosec
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s: %w", h.opts.Template, err)
	}

	doc := buf.String()
	switch h.opts.Inject {
	case "body":
		doc = insertBefore(doc, "</head>", headTags)
		doc = insertBefore(doc, "</body>", bodyTags)
	case "head":
		doc = insertBefore(doc, "</head>", headTags+bodyTags)
	}

	target := filepath.Join(out.Outdir, h.opts.Filename)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(target, []byte(doc), 0o644); err != nil { //nolint:gosec
		return err
	}
	out.AddFile(target)
	return nil
}

func renderTags(page *PageAssets, extraScripts []string) (head, body string) {
	var hb, bb strings.Builder
	for _, href := range page.Styles {
		fmt.Fprintf(&hb, "<link rel=\"stylesheet\" href=\"%s\">\n", template.HTMLEscapeString(href))
	}
	for _, href := range page.Preloads {
		fmt.Fprintf(&hb, "<link rel=\"modulepreload\" href=\"%s\">\n", template.HTMLEscapeString(href))
	}
	fmt.Fprintf(&bb, "<script type=\"module\" src=\"%s\"></script>\n", template.HTMLEscapeString(page.Entry))
	for _, src := range extraScripts {
		fmt.Fprintf(&bb, "<script src=\"%s\"></script>\n", template.HTMLEscapeString(src))
	}
	return hb.String(), bb.String()
}

// insertBefore places tags before the last case-insensitive occurrence of
// marker, or appends them when the marker is missing. Offsets are taken from
// doc itself so multi-byte text ahead of the marker cannot shift them.
func insertBefore(doc, marker, tags string) string {
	if tags == "" {
		return doc
	}
	idx := lastIndexFold(doc, marker)
	if idx == -1 {
		return doc + tags
	}
	return doc[:idx] + tags + doc[idx:]
}

func lastIndexFold(s, substr string) int {
	for i := len(s) - len(substr); i >= 0; i-- {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

func marshal(value any) (string, error) {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		return "", errors.New("context can only be json serializable")
	}

	return buf.String(), nil
}
