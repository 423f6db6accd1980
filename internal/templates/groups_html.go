package templates

import (
	"bytes"
	"html/template"
)

type GroupEntry struct {
	Number  int
	Name    string
	URL     string
	Members []string
	Bullets []string
}

type GroupsEmailData struct {
	SessionID string
	Groups    []GroupEntry
}

const groupsHTML = `
<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8"/>
  <title>Co-creation groups</title>
  <style>
    body {
      margin: 0;
      padding: 0;
      font-family: Arial, sans-serif;
      background-color: #f5f5f5;
      color: #333;
    }
    .email-container {
      width: 100%;
      max-width: 600px;
      margin: 0 auto;
      background-color: #ffffff;
      border-radius: 6px;
      overflow: hidden;
      box-shadow: 0 2px 5px rgba(0,0,0,0.1);
    }
    .header {
      background-color: #333;
      padding: 20px;
      text-align: center;
      color: #fff;
    }
    .header h1 {
      margin: 0;
      font-size: 22px;
    }
    .content {
      padding: 20px;
      text-align: left;
    }
    .group {
      border-top: 1px solid #eee;
      padding: 12px 0;
    }
    .rationale {
      color: #666;
      font-size: 13px;
    }
    .footer {
      font-size: 12px;
      color: #999;
      text-align: center;
      padding: 10px 20px;
    }
  </style>
</head>
<body>
  <table class="email-container" role="presentation" cellspacing="0" cellpadding="0">
    <tr>
      <td>
        <div class="header">
          <h1>{{len .Groups}} groups are ready</h1>
        </div>

        <div class="content">
          {{if .SessionID}}
            <p>Session <strong>{{.SessionID}}</strong></p>
          {{end}}
          {{range .Groups}}
            <div class="group">
              <p><strong>Group {{.Number}}: {{.Name}}</strong> <a href="{{.URL}}">{{.URL}}</a></p>
              <ul>
                {{range .Members}}<li>{{.}}</li>{{end}}
              </ul>
              {{if .Bullets}}
                <ul class="rationale">
                  {{range .Bullets}}<li>{{.}}</li>{{end}}
                </ul>
              {{end}}
            </div>
          {{end}}
        </div>

        <div class="footer">
          <p>Sent after the latest grouping run.</p>
        </div>
      </td>
    </tr>
  </table>
</body>
</html>
`

var groupsTmpl = template.Must(template.New("groups").Parse(groupsHTML))

// RenderGroupsHTML renders the facilitator's roster mail. Member names and
// rationale come from participants and the model, so they are escaped.
func RenderGroupsHTML(data GroupsEmailData) (string, error) {
	var buf bytes.Buffer
	if err := groupsTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
