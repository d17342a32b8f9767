package render

import (
	"html/template"
)

var templates = template.Must(template.New("render").Parse(`
{{define "inline"}}<code class="inline-code">{{.}}</code>{{end}}

{{define "code"}}<div class="code-block" data-language="{{.Language}}">
<div class="code-block-header"><span class="code-block-title">{{.Title}}</span><button type="button" class="copy-button" title="Copy code">Copy</button></div>
{{.Highlighted}}</div>
{{end}}

{{define "preview"}}<div class="preview-block">
<div class="preview-header"><span class="preview-title">HTML Preview</span><button type="button" class="copy-button" title="Copy code" data-copy="{{.Code}}">Copy</button><a class="download-link" title="Download HTML" download="preview.html" href="{{.Download}}">Download</a></div>
<iframe class="preview-frame" sandbox="allow-scripts" srcdoc="{{.Code}}"></iframe>
</div>
{{end}}

{{define "narrative"}}<div class="narrative">{{.}}</div>
{{end}}
`))

type codeView struct {
	Title       string
	Language    string
	Highlighted template.HTML
}

type previewView struct {
	Code     string
	Download template.URL
}
