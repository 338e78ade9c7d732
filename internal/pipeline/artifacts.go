package pipeline

import (
	"bytes"
	"fmt"
	"html/template"
	"os"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
)

var detailsTemplate = template.Must(template.New("details").Parse(`
<div class="container mt-4">
  <h4>Detalji radnog naloga</h4>
  <table class="table table-striped mt-3">
    <tr>
        <th>Radni nalog</th>
        <td>{{.ID}} <button onclick="copyToClipboard({{.ID}})">📋</button></td>
    </tr>
    <tr><th>Partner</th><td>{{.Partner}}</td></tr>
    <tr><th>Aparat</th><td>{{.Device}}</td></tr>
    <tr><th>Serijski broj</th><td>{{.SerialNumber}}</td></tr>
    <tr><th>Šifra aparata</th><td>{{.DeviceCode}}</td></tr>
    <tr><th>Opis pogreške</th><td>{{.FaultDescription}}</td></tr>
    <tr><th>Opis obavljenog posla</th><td>{{.WorkDescription}}</td></tr>
    <tr>
        <th>Datum</th>
        <td>{{.Date}} <button onclick="copyToClipboard({{.Date}})">📋</button></td>
    </tr>
  </table>
</div>
<script>
function copyToClipboard(text) {
  navigator.clipboard.writeText(text).then(function() {
    console.log('Copying to clipboard was successful!');
  }, function(err) {
    console.error('Could not copy text: ', err);
  });
}
</script>
`))

// RenderDetails renders the human-readable work order summary
func RenderDetails(rec domain.WorkOrderRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := detailsTemplate.Execute(&buf, rec); err != nil {
		return nil, fmt.Errorf("failed to render details: %w", err)
	}
	return buf.Bytes(), nil
}

// writeDetails writes the summary artifact to path
func writeDetails(path string, rec domain.WorkOrderRecord) error {
	data, err := RenderDetails(rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write details: %w", err)
	}
	return nil
}

// writeCounterArtifact writes the single counter line to path
func writeCounterArtifact(path, line string) error {
	if err := os.WriteFile(path, []byte(line+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write counter artifact: %w", err)
	}
	return nil
}
