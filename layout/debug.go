package layout

import (
	"encoding/json"
	"os"
)

// WriteDebugJSON 将折行结果输出为 JSON，便于调试或可视化。
func WriteDebugJSON(model *LineModel, path string) error {
	if model == nil {
		return nil
	}
	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
