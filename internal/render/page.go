package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"
)

// Entry is one stored exchange shown on a page.
type Entry struct {
	Prompt    string
	Response  string
	Truncated bool
	CreatedAt time.Time
}

type pageEntry struct {
	Prompt    string
	Body      template.HTML
	Truncated bool
	CreatedAt time.Time
}

type pageView struct {
	Title   string
	CSS     template.CSS
	Entries []pageEntry
	// Chat adds the composer (or the login form when SignedIn is false).
	Chat     bool
	SignedIn bool
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>{{.CSS}}
.preview-frame { width: 100%; height: 16rem; border: 0; }
.error { color: #c0392b; }
</style>
</head>
<body>
<main class="{{if .Chat}}chat{{else}}history{{end}}">
<h1>{{.Title}}</h1>
{{if or .SignedIn (not .Chat)}}<div id="exchanges">
{{range .Entries}}<article class="exchange">
<div class="prompt"><span class="who">You</span> <time datetime="{{.CreatedAt.Format "2006-01-02T15:04:05Z07:00"}}">{{.CreatedAt.Format "Jan 2, 15:04"}}</time><p>{{.Prompt}}</p></div>
<div class="response"><span class="who">Assistant</span>{{if .Truncated}} <span class="truncated">(interrupted)</span>{{end}}
<div class="body">{{.Body}}</div></div>
</article>
{{else}}<p class="empty">No messages yet.</p>
{{end}}</div>
{{end}}{{if .Chat}}{{if .SignedIn}}<form id="composer" class="composer">
<textarea name="prompt" rows="3" placeholder="Ask for some HTML..." required></textarea>
<button type="submit">Send</button>
</form>
{{else}}<form id="login" class="login">
<input type="email" name="email" placeholder="Email" required>
<input type="password" name="password" placeholder="Password" required>
<input type="text" name="name" placeholder="Name (sign up only)">
<button type="submit" value="login">Log in</button>
<button type="submit" value="signup">Sign up</button>
<p class="error" hidden></p>
</form>
{{end}}{{end}}</main>
<script>
document.addEventListener("click", function (e) {
  var btn = e.target.closest(".copy-button");
  if (!btn) return;
  var text = btn.dataset.copy;
  if (text === undefined) {
    var code = btn.closest(".code-block").querySelector("pre");
    text = code ? code.textContent : "";
  }
  navigator.clipboard.writeText(text);
});
</script>
{{if .Chat}}<script>
async function postJSON(path, body) {
  var res = await fetch(path, {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify(body)
  });
  if (!res.ok) {
    var err = await res.json().catch(function () { return {}; });
    throw new Error(err.details || err.error || res.statusText);
  }
  return res;
}

var login = document.getElementById("login");
if (login) login.addEventListener("submit", async function (e) {
  e.preventDefault();
  var f = login.elements;
  var errBox = login.querySelector(".error");
  try {
    if (e.submitter && e.submitter.value === "signup") {
      await postJSON("/auth/signup", {email: f.email.value, password: f.password.value, name: f.namedItem("name").value});
    }
    await postJSON("/auth/login", {email: f.email.value, password: f.password.value});
    location.reload();
  } catch (err) {
    errBox.textContent = err.message;
    errBox.hidden = false;
  }
});

var messages = [];
var renderSeq = 0;

// rerender replaces target with the server rendering of text; responses
// that arrive after a newer request are dropped.
async function rerender(target, text) {
  var seq = ++renderSeq;
  var res = await postJSON("/render", {text: text});
  var out = await res.json();
  if (seq === renderSeq) target.innerHTML = out.html;
}

var composer = document.getElementById("composer");
if (composer) composer.addEventListener("submit", async function (e) {
  e.preventDefault();
  var input = composer.elements.prompt;
  var prompt = input.value;
  if (!prompt.trim()) return;
  input.value = "";
  var send = composer.querySelector("button");
  send.disabled = true;

  var list = document.getElementById("exchanges");
  var empty = list.querySelector(".empty");
  if (empty) empty.remove();
  var ex = document.createElement("article");
  ex.className = "exchange";
  ex.innerHTML = '<div class="prompt"><span class="who">You</span><p></p></div>' +
    '<div class="response"><span class="who">Assistant</span><div class="body"></div></div>';
  ex.querySelector(".prompt p").textContent = prompt;
  list.appendChild(ex);
  var body = ex.querySelector(".body");

  messages.push({role: "user", content: prompt});
  var text = "";
  try {
    var res = await postJSON("/chat", {messages: messages});
    var reader = res.body.getReader();
    var decoder = new TextDecoder();
    for (;;) {
      var chunk = await reader.read();
      if (chunk.done) break;
      text += decoder.decode(chunk.value, {stream: true});
      rerender(body, text).catch(function () {});
    }
    text += decoder.decode();
    await rerender(body, text);
    messages.push({role: "assistant", content: text});
  } catch (err) {
    if (text === "") messages.pop();
    else messages.push({role: "assistant", content: text});
    var p = document.createElement("p");
    p.className = "error";
    p.textContent = err.message;
    ex.appendChild(p);
  } finally {
    send.disabled = false;
  }
});
</script>
{{end}}</body>
</html>
`))

// Page writes a complete HTML document listing entries in the order given.
func (r *Renderer) Page(w io.Writer, title string, entries []Entry) error {
	view, err := r.pageView(title, entries)
	if err != nil {
		return err
	}
	return pageTemplate.Execute(w, view)
}

// ChatPage writes the interactive chat document: entries above a composer
// that streams POST /chat and re-renders the growing reply through
// POST /render. Anonymous visitors get a login form instead.
func (r *Renderer) ChatPage(w io.Writer, title string, entries []Entry, signedIn bool) error {
	view, err := r.pageView(title, entries)
	if err != nil {
		return err
	}
	view.Chat = true
	view.SignedIn = signedIn
	return pageTemplate.Execute(w, view)
}

func (r *Renderer) pageView(title string, entries []Entry) (pageView, error) {
	var css bytes.Buffer
	if err := r.CSS(&css); err != nil {
		return pageView{}, fmt.Errorf("write css: %w", err)
	}
	view := pageView{Title: title, CSS: template.CSS(css.String())}
	for _, e := range entries {
		res, err := r.Render(e.Response)
		if err != nil {
			return pageView{}, err
		}
		view.Entries = append(view.Entries, pageEntry{
			Prompt:    e.Prompt,
			Body:      res.HTML,
			Truncated: e.Truncated,
			CreatedAt: e.CreatedAt,
		})
	}
	return view, nil
}
