package demoserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// scenarioFromForm reads the control panel form. Missing numbers are zero.
func scenarioFromForm(r *http.Request) (Scenario, error) {
	if err := r.ParseForm(); err != nil {
		return Scenario{}, errors.New("invalid form")
	}
	atoi := func(key string) (int, error) {
		v := strings.TrimSpace(r.PostFormValue(key))
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, errors.New("invalid " + key)
		}
		return n, nil
	}

	pending, err := atoi("pending_polls")
	if err != nil {
		return Scenario{}, err
	}
	failAt, err := atoi("fail_at_poll")
	if err != nil {
		return Scenario{}, err
	}
	return Scenario{
		PendingPolls:  pending,
		FailAtPoll:    failAt,
		NeverComplete: r.PostFormValue("never_complete") == "on",
		LatestEnabled: r.PostFormValue("latest_enabled") == "on",
		StartError:    strings.TrimSpace(r.PostFormValue("start_error")),
	}, nil
}

const controlPanelHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Demo Scan Service Control Panel</title>
    <style>
        body { font-family: system-ui, -apple-system, sans-serif; max-width: 1200px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        h1 { color: #333; border-bottom: 2px solid #007bff; padding-bottom: 10px; }
        .card { background: white; border-radius: 8px; padding: 20px; margin: 15px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .global-controls { background: #fff3cd; padding: 20px; border-radius: 8px; margin-bottom: 20px; }
        .global-controls h2 { margin-top: 0; color: #856404; }
        .global-btn { padding: 10px 20px; margin-right: 10px; border: none; border-radius: 4px; cursor: pointer; font-size: 14px; }
        .save-btn { background: #28a745; color: white; }
        .reset-btn { background: #dc3545; color: white; }
        label { display: block; margin: 8px 0; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 6px; border-bottom: 1px solid #eee; }
        .status-completed { color: #28a745; }
        .status-failed { color: #dc3545; }
        .status-pending { color: #856404; }
        .info-box { background: #e7f3ff; padding: 15px; border-radius: 8px; margin-bottom: 20px; border-left: 4px solid #007bff; }
    </style>
</head>
<body>
    <h1>Demo Scan Service Control Panel</h1>

    <div class="info-box">
        <strong>How to use:</strong> Point secboard at http://localhost:{{.Port}} and pick how scans behave.
        Each scan of a domain rotates its SPF record so repeated scans show record changes.
    </div>

    <div class="global-controls">
        <h2>Scenario</h2>
        <form method="post" action="/demo/scenario">
            <label>Pending polls before completion <input type="number" min="0" name="pending_polls" value="{{.Scenario.PendingPolls}}"></label>
            <label>Fail at poll (0 = never) <input type="number" min="0" name="fail_at_poll" value="{{.Scenario.FailAtPoll}}"></label>
            <label><input type="checkbox" name="never_complete" {{if .Scenario.NeverComplete}}checked{{end}}> Never complete</label>
            <label><input type="checkbox" name="latest_enabled" {{if .Scenario.LatestEnabled}}checked{{end}}> Serve latest scan per domain</label>
            <label>Start error message <input type="text" name="start_error" value="{{.Scenario.StartError}}"></label>
            <button class="global-btn save-btn" type="submit">Save</button>
            <button class="global-btn reset-btn" type="button" onclick="resetAll()">Reset</button>
        </form>
    </div>

    <h2>Scans</h2>
    <div class="card">
        <table>
            <tr><th>Scan</th><th>Domain</th><th>Revision</th><th>Polls</th><th>Status</th></tr>
            {{range .Scans}}
            <tr>
                <td>{{.ID}}</td>
                <td>{{.Domain}}</td>
                <td>{{.Revision}}</td>
                <td>{{.Polls}}</td>
                <td class="status-{{.Status}}">{{.Status}}</td>
            </tr>
            {{end}}
        </table>
    </div>

    <script>
        function resetAll() {
            fetch('/demo/reset', {method: 'POST'})
            .then(r => r.json())
            .then(data => { if (data.success) location.reload(); });
        }
    </script>
</body>
</html>`
