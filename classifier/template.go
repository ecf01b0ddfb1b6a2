package classifier

import (
	"html/template"
	"io"

	"github.com/russross/blackfriday/v2"
)

const pageLayout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>body{font-family:sans-serif;max-width:48em;margin:2em auto;padding:0 1em}img{max-width:100%}</style>
</head>
<body>
{{markdown .Content}}
</body>
</html>
`

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"markdown": func(text string) template.HTML {
		return template.HTML(blackfriday.Run([]byte(text)))
	},
}).Parse(pageLayout))

type TemplateContent struct {
	Title   string
	Content string
}

// ExecTemplate renders content, written in markdown, as a standalone page.
func ExecTemplate(w io.Writer, content TemplateContent) error {
	return pageTemplate.Execute(w, content)
}
