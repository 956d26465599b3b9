package feed

import (
	"bytes"
	"html/template"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/folio/portfolio/models"
)

var sectionTmpl = template.Must(template.New("comments").Parse(`<section id="comments" class="comments{{if .Offline}} comments-offline{{end}}">
{{- if .Offline}}
  <p class="comments-status">Offline. Retrying in the background.</p>
{{- end}}
{{- with .Notice}}
  <div id="formMessage" class="notice notice-{{.Kind}}">{{.Message}}</div>
{{- end}}
  <form id="commentForm"{{if .Busy}} aria-busy="true"{{end}}>
    <input id="commentName" name="name" value="{{.Form.Name}}">
    <input id="commentEmail" name="email" type="email" value="{{.Form.Email}}">
    <textarea id="commentMessage" name="message" maxlength="500">{{.Form.Message}}</textarea>
    <button id="submitBtn" type="submit"{{if .Busy}} disabled{{end}}>{{if .Busy}}Sending...{{else}}Post comment{{end}}</button>
  </form>
{{- if .Empty}}
  <p id="emptyState">No comments yet. Be the first to leave one!</p>
{{- end}}
  <div id="commentsList">{{.List}}</div>
</section>
`))

var listTmpl = template.Must(template.New("list").Funcs(template.FuncMap{
	"initial": initial,
}).Parse(`
{{- range .}}
    <article id="comment-{{.ID}}" class="comment-item">
      <div class="comment-avatar">{{initial .Name}}</div>
      <h4 class="comment-name">{{.Name}}</h4>
      <span class="comment-time">{{.CreatedAt}}</span>
      <p class="comment-message">{{.Message}}</p>
    </article>
{{- end}}
`))

// listPolicy admits exactly the markup listTmpl produces. User text is
// already escaped by the template, so the pass leaves it unchanged.
var listPolicy = bluemonday.NewPolicy().
	AllowElements("article", "div", "h4", "span", "p").
	AllowAttrs("id", "class").OnElements("article", "div", "h4", "span", "p")

type notice struct {
	Kind    NoticeKind
	Message string
}

// HTMLView keeps the state of the comments section and renders it as HTML.
// All user text goes through html/template and is escaped. Render and Form
// are not synchronized with a running poll loop.
type HTMLView struct {
	Form Form

	comments []models.CommentDTO
	empty    bool
	busy     bool
	offline  bool
	notice   *notice
}

// NewHTMLView returns an empty view.
func NewHTMLView() *HTMLView {
	return &HTMLView{}
}

func (v *HTMLView) Insert(pos int, c models.CommentDTO) {
	if pos < 0 || pos > len(v.comments) {
		pos = len(v.comments)
	}
	v.comments = append(v.comments, models.CommentDTO{})
	copy(v.comments[pos+1:], v.comments[pos:])
	v.comments[pos] = c
}

func (v *HTMLView) ShowEmpty() {
	v.comments = nil
	v.empty = true
}

func (v *HTMLView) HideEmpty() { v.empty = false }

func (v *HTMLView) Notify(kind NoticeKind, message string) {
	v.notice = &notice{Kind: kind, Message: message}
}

func (v *HTMLView) SetBusy(busy bool) { v.busy = busy }

func (v *HTMLView) ClearForm() { v.Form = Form{} }

func (v *HTMLView) SetOffline(offline bool) { v.offline = offline }

// Comments returns the rendered comments, newest first.
func (v *HTMLView) Comments() []models.CommentDTO {
	out := make([]models.CommentDTO, len(v.comments))
	copy(out, v.comments)
	return out
}

// Render writes the comments section to w.
func (v *HTMLView) Render(w io.Writer) error {
	list, err := renderList(v.comments)
	if err != nil {
		return err
	}
	return sectionTmpl.Execute(w, struct {
		List    template.HTML
		Empty   bool
		Busy    bool
		Offline bool
		Notice  *notice
		Form    Form
	}{list, v.empty, v.busy, v.offline, v.notice, v.Form})
}

func renderList(comments []models.CommentDTO) (template.HTML, error) {
	var buf bytes.Buffer
	if err := listTmpl.Execute(&buf, comments); err != nil {
		return "", err
	}
	return template.HTML(listPolicy.SanitizeBytes(buf.Bytes())), nil
}

func initial(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return "?"
	}
	return strings.ToUpper(string(r))
}
