package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"greenlens/backend/services/dashboard-service/internal/chat"
)

// NewShellHandler serves the single-page shell. The page only draws what the API returns.
func NewShellHandler() http.HandlerFunc {
	errorReply, _ := json.Marshal(chat.ErrorReply)
	page := []byte(strings.ReplaceAll(shellHTML, "__CHAT_ERROR_REPLY__", string(errorReply)))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(page)
	}
}

const shellHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>GreenLens</title>
<style>
  body { font-family: system-ui, sans-serif; margin: 0; background: #f4f7f4; color: #14281d; }
  nav { display: flex; align-items: center; gap: 2rem; padding: 0.8rem 1.5rem; background: #14532d; color: #fff; }
  nav .logo { font-weight: 700; }
  nav a { color: #d9f2e1; text-decoration: none; margin-right: 1rem; }
  nav a.active { color: #fff; text-decoration: underline; }
  main { max-width: 920px; margin: 1.5rem auto; padding: 0 1rem; }
  section { display: none; }
  section.active { display: block; }
  .chart-box img { width: 100%; background: #fff; border-radius: 6px; min-height: 120px; }
  .status-box { margin-top: 1rem; padding: 1rem; background: #fff; border-radius: 6px; }
  .msg { color: #555; }
  .chat-body { background: #fff; border-radius: 6px; padding: 1rem; height: 360px; overflow-y: auto; }
  .chat-message { margin: 0.4rem 0; padding: 0.5rem 0.8rem; border-radius: 12px; max-width: 75%; }
  .chat-message.user { background: #d9f2e1; margin-left: auto; }
  .chat-message.bot { background: #eef1ef; }
  .chat-input { display: flex; gap: 0.5rem; margin-top: 0.6rem; }
  .chat-input input { flex: 1; padding: 0.5rem; }
  #login { display: none; }
</style>
</head>
<body>
<nav>
  <div class="logo">GreenLens</div>
  <div>
    <a href="#dashboard" data-view="dashboard">Dashboard</a>
    <a href="#chat" data-view="chat">Ask ESG</a>
    <a href="#upload" data-view="upload">Upload Docs</a>
  </div>
</nav>
<main>
  <form id="login">
    <h2>Operator login</h2>
    <input name="operator" placeholder="Operator" autocomplete="username">
    <input name="password" type="password" placeholder="Password" autocomplete="current-password">
    <button type="submit">Log in</button>
    <p id="login-msg"></p>
  </form>

  <section id="view-dashboard">
    <h2>Real-Time Energy Usage Overview</h2>
    <div class="chart-box"><img id="chart" alt="Energy usage chart"></div>
    <div class="status-box">
      <p class="msg" id="status-msg">Loading data...</p>
      <div id="prediction" hidden>
        <p>Predicted CO&#8322; Emission: <strong id="co2"></strong></p>
        <p>ESG Score: <strong id="esg"></strong></p>
      </div>
    </div>
  </section>

  <section id="view-chat">
    <div class="chat-body" id="chat-body"></div>
    <form class="chat-input" id="chat-form">
      <input id="chat-text" type="text" placeholder="Ask me about sustainability..." autocomplete="off">
      <button type="submit">Send</button>
    </form>
  </section>

  <section id="view-upload">
    <h2>Upload ESG / CSRD / EU Taxonomy PDFs</h2>
    <form id="upload-form">
      <input id="upload-file" type="file" accept="application/pdf">
      <button type="submit">Upload</button>
    </form>
    <p id="upload-msg"></p>
  </section>
</main>
<script>
(function () {
  var CHAT_ERROR_REPLY = __CHAT_ERROR_REPLY__;
  var token = sessionStorage.getItem("greenlens.token") || "";
  var lastVersion = -1;
  var chatSession = null;
  var socket = null;

  function withToken(url) {
    if (!token) { return url; }
    return url + (url.indexOf("?") < 0 ? "?" : "&") + "token=" + encodeURIComponent(token);
  }

  function api(path, options) {
    options = options || {};
    options.headers = options.headers || {};
    if (token) { options.headers["Authorization"] = "Bearer " + token; }
    return fetch(path, options).then(function (res) {
      if (res.status === 401) { showLogin(); throw new Error("unauthorized"); }
      return res.json().catch(function () { return {}; }).then(function (body) {
        return { status: res.status, body: body };
      });
    });
  }

  function showLogin() {
    document.getElementById("login").style.display = "block";
  }

  document.getElementById("login").addEventListener("submit", function (ev) {
    ev.preventDefault();
    var form = ev.target;
    fetch("/api/auth/login", {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify({ operator: form.operator.value, password: form.password.value })
    }).then(function (res) { return res.json().then(function (b) { return { status: res.status, body: b }; }); })
      .then(function (r) {
        if (r.status !== 200) { document.getElementById("login-msg").textContent = "Login failed."; return; }
        token = r.body.token;
        sessionStorage.setItem("greenlens.token", token);
        form.style.display = "none";
        start();
      });
  });

  function route() {
    var view = (location.hash || "#dashboard").slice(1);
    document.querySelectorAll("section").forEach(function (s) {
      s.classList.toggle("active", s.id === "view-" + view);
    });
    document.querySelectorAll("nav a").forEach(function (a) {
      a.classList.toggle("active", a.dataset.view === view);
    });
  }
  window.addEventListener("hashchange", route);

  function render(snap) {
    if (snap.version <= lastVersion) { return; }
    lastVersion = snap.version;
    document.getElementById("status-msg").textContent = snap.message;
    if (snap.usage && snap.usage.length >= 2) {
      document.getElementById("chart").src = withToken("/api/dashboard/chart.png?v=" + snap.version);
    }
    var box = document.getElementById("prediction");
    if (snap.prediction) {
      box.hidden = false;
      document.getElementById("co2").textContent = snap.prediction.predicted_CO2_kg + " kg";
      document.getElementById("esg").textContent = snap.prediction.esg_score === null ? "-" : snap.prediction.esg_score;
    }
  }

  function connect() {
    if (socket && socket.readyState <= 1) { return; }
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    socket = new WebSocket(withToken(proto + location.host + "/api/dashboard/ws"));
    socket.onmessage = function (ev) { render(JSON.parse(ev.data)); };
    socket.onclose = function () { setTimeout(connect, 3000); };
  }

  function drawTranscript(t) {
    var body = document.getElementById("chat-body");
    body.innerHTML = "";
    t.messages.forEach(function (m) { appendMessage(m.sender, m.text); });
    if (t.typing) { appendMessage("bot", "Typing..."); }
  }

  function appendMessage(sender, text) {
    var body = document.getElementById("chat-body");
    var div = document.createElement("div");
    div.className = "chat-message " + (sender === "user" ? "user" : "bot");
    div.textContent = text;
    body.appendChild(div);
    body.scrollTop = body.scrollHeight;
    return div;
  }

  function ensureSession() {
    if (chatSession) { return Promise.resolve(chatSession); }
    return api("/api/chat/sessions", { method: "POST" }).then(function (r) {
      if (r.status !== 201 || !r.body.id) { throw new Error("chat session not created"); }
      chatSession = r.body.id;
      drawTranscript(r.body);
      return chatSession;
    });
  }

  document.getElementById("chat-form").addEventListener("submit", function (ev) {
    ev.preventDefault();
    var input = document.getElementById("chat-text");
    var text = input.value.trim();
    if (!text) { return; }
    input.value = "";
    ensureSession().then(function (id) {
      appendMessage("user", text);
      var pending = appendMessage("bot", "Typing...");
      return api("/api/chat/sessions/" + id + "/messages", {
        method: "POST",
        headers: { "Content-Type": "application/json" },
        body: JSON.stringify({ text: text })
      }).then(function (r) {
        if (r.status === 200 && r.body.transcript) { drawTranscript(r.body.transcript); return; }
        if (r.status === 404) { chatSession = null; }
        pending.textContent = CHAT_ERROR_REPLY;
      }, function () {
        pending.textContent = CHAT_ERROR_REPLY;
      });
    }).catch(function () {
      appendMessage("user", text);
      appendMessage("bot", CHAT_ERROR_REPLY);
    });
  });

  document.getElementById("upload-form").addEventListener("submit", function (ev) {
    ev.preventDefault();
    var msg = document.getElementById("upload-msg");
    var input = document.getElementById("upload-file");
    var data = new FormData();
    if (input.files.length > 0) { data.append("file", input.files[0]); }
    api("/api/upload", { method: "POST", body: data }).then(function (r) {
      msg.textContent = r.body.message || "Upload failed. Please check the backend logs.";
    }).catch(function () {
      msg.textContent = "Upload failed. Please check the backend logs.";
    });
  });

  function start() {
    api("/api/dashboard").then(function (r) {
      if (r.status === 200) { render(r.body); }
    }).catch(function () {}).then(connect);
    ensureSession().catch(function () {});
  }

  route();
  start();
})();
</script>
</body>
</html>
`
