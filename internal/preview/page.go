package preview

import "html/template"

type pageData struct {
	ErrorsURL     string
	Document      string
	MessageType   string
	MessageSource string
}

var pageTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Widget preview</title>
<style>
  html, body { margin: 0; height: 100%; background: #f4f4f5; }
  iframe { border: 0; width: 100%; height: 100%; background: transparent; }
</style>
</head>
<body>
<iframe sandbox="allow-scripts" srcdoc="{{.Document}}"></iframe>
<script>
  window.addEventListener("message", function (event) {
    var data = event.data;
    if (!data || data.type !== {{.MessageType}} || data.source !== {{.MessageSource}}) {
      return;
    }
    fetch({{.ErrorsURL}}, {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify(data)
    }).catch(function () {});
  });
</script>
</body>
</html>
`))
