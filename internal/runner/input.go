package runner

import (
	"fmt"
	"os"
)

// InputFilePlaceholder in Invocation.Args is replaced with the input file path.
const InputFilePlaceholder = "{{input_file}}"

// writeInputFile writes the payload to a uniquely named temp file.
func writeInputFile(dir, payload string) (string, error) {
	f, err := os.CreateTemp(dir, "ensemble-input-*")
	if err != nil {
		return "", fmt.Errorf("creating input file: %w", err)
	}
	if _, err := f.WriteString(payload); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing input file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing input file: %w", err)
	}
	return f.Name(), nil
}

func substituteInput(args []string, path string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == InputFilePlaceholder {
			out[i] = path
		} else {
			out[i] = a
		}
	}
	return out
}
