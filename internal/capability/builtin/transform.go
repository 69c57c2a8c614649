package builtin

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/capability"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/serialize"
)

// Transform returns format conversion, statistics and content sniffing
// helpers. Parsed documents come back as native script values, never as host
// references.
func Transform() capability.Binder {
	return func(scope capability.Scope) any {
		vm := scope.Runtime()

		native := func(tree any) goja.Value {
			return serialize.ToJS(vm, serialize.Value(tree))
		}
		plain := func(v goja.Value) any {
			return serialize.New(vm).Value(v)
		}

		return map[string]any{
			"json": map[string]any{
				"parse": func(text string) (goja.Value, error) {
					var out any
					if err := sonic.ConfigStd.UnmarshalFromString(text, &out); err != nil {
						return nil, fmt.Errorf("invalid JSON: %w", err)
					}
					return native(out), nil
				},
				"stringify": func(v goja.Value, indent ...int) (string, error) {
					return encodeJSON(plain(v), indent)
				},
			},
			"yaml": map[string]any{
				"parse": func(text string) (goja.Value, error) {
					var out any
					if err := yaml.Unmarshal([]byte(text), &out); err != nil {
						return nil, fmt.Errorf("invalid YAML: %w", err)
					}
					return native(out), nil
				},
				"stringify": func(v goja.Value) (string, error) {
					data, err := yaml.Marshal(plain(v))
					if err != nil {
						return "", fmt.Errorf("YAML encoding error: %w", err)
					}
					return string(data), nil
				},
			},
			"toml": map[string]any{
				"parse": func(text string) (goja.Value, error) {
					var out map[string]any
					if err := toml.Unmarshal([]byte(text), &out); err != nil {
						return nil, fmt.Errorf("invalid TOML: %w", err)
					}
					return native(out), nil
				},
				"stringify": func(v goja.Value) (string, error) {
					doc, ok := plain(v).(map[string]any)
					if !ok {
						return "", fmt.Errorf("TOML documents must be objects")
					}
					data, err := toml.Marshal(doc)
					if err != nil {
						return "", fmt.Errorf("TOML encoding error: %w", err)
					}
					return string(data), nil
				},
			},
			"csv": map[string]any{
				"parse": func(text string, header ...bool) (goja.Value, error) {
					rows, err := parseCSV(text, len(header) == 0 || header[0])
					if err != nil {
						return nil, err
					}
					return native(rows), nil
				},
				"stringify": func(v goja.Value) (string, error) {
					return encodeCSV(plain(v))
				},
			},
			"stats": Stats(),
			"mime": func(content string) map[string]any {
				mtype := mimetype.Detect([]byte(content))
				return map[string]any{
					"type":      mtype.String(),
					"extension": mtype.Extension(),
				}
			},
		}
	}
}

func encodeJSON(tree any, indent []int) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(indent) > 0 && indent[0] > 0 {
		data, err = sonic.ConfigStd.MarshalIndent(tree, "", strings.Repeat(" ", indent[0]))
	} else {
		data, err = sonic.ConfigStd.Marshal(tree)
	}
	if err != nil {
		return "", fmt.Errorf("JSON encoding error: %w", err)
	}
	return string(data), nil
}

func parseCSV(text string, hasHeader bool) ([]any, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV parse error: %w", err)
	}

	rows := make([]any, 0, len(records))
	if !hasHeader {
		for _, record := range records {
			row := make([]any, len(record))
			for i, cell := range record {
				row[i] = cell
			}
			rows = append(rows, row)
		}
		return rows, nil
	}

	if len(records) == 0 {
		return rows, nil
	}

	headers := records[0]
	for _, record := range records[1:] {
		row := make(map[string]any, len(headers))
		for j, cell := range record {
			if j < len(headers) {
				row[headers[j]] = cell
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// encodeCSV accepts a sequence of sequences or a sequence of objects. Object
// rows share the sorted key set of all rows as their header.
func encodeCSV(tree any) (string, error) {
	rows, ok := tree.([]any)
	if !ok {
		return "", fmt.Errorf("CSV input must be an array of rows")
	}

	var records [][]string

	if len(rows) > 0 {
		if _, objects := rows[0].(map[string]any); objects {
			headerSet := make(map[string]struct{})
			for _, r := range rows {
				m, ok := r.(map[string]any)
				if !ok {
					return "", fmt.Errorf("CSV rows must all be objects or all be arrays")
				}
				for k := range m {
					headerSet[k] = struct{}{}
				}
			}
			headers := make([]string, 0, len(headerSet))
			for k := range headerSet {
				headers = append(headers, k)
			}
			sort.Strings(headers)

			records = append(records, headers)
			for _, r := range rows {
				m := r.(map[string]any)
				record := make([]string, len(headers))
				for i, h := range headers {
					record[i] = cellText(m[h])
				}
				records = append(records, record)
			}
		} else {
			for _, r := range rows {
				cells, ok := r.([]any)
				if !ok {
					return "", fmt.Errorf("CSV rows must all be objects or all be arrays")
				}
				record := make([]string, len(cells))
				for i, c := range cells {
					record[i] = cellText(c)
				}
				records = append(records, record)
			}
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("CSV encoding error: %w", err)
	}
	return buf.String(), nil
}

func cellText(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Stats returns descriptive statistics over number arrays.
func Stats() map[string]any {
	return map[string]any{
		"sum": func(xs []float64) float64 {
			return floats.Sum(xs)
		},
		"mean": func(xs []float64) (float64, error) {
			if err := requireSamples(xs, 1); err != nil {
				return 0, err
			}
			return stat.Mean(xs, nil), nil
		},
		"median": func(xs []float64) (float64, error) {
			return quantile(xs, 0.5)
		},
		"quantile": quantile,
		"variance": func(xs []float64) (float64, error) {
			if err := requireSamples(xs, 2); err != nil {
				return 0, err
			}
			return stat.Variance(xs, nil), nil
		},
		"stddev": func(xs []float64) (float64, error) {
			if err := requireSamples(xs, 2); err != nil {
				return 0, err
			}
			return stat.StdDev(xs, nil), nil
		},
		"min": func(xs []float64) (float64, error) {
			if err := requireSamples(xs, 1); err != nil {
				return 0, err
			}
			return floats.Min(xs), nil
		},
		"max": func(xs []float64) (float64, error) {
			if err := requireSamples(xs, 1); err != nil {
				return 0, err
			}
			return floats.Max(xs), nil
		},
		"correlation": func(x, y []float64) (float64, error) {
			if err := requirePaired(x, y); err != nil {
				return 0, err
			}
			return stat.Correlation(x, y, nil), nil
		},
		"covariance": func(x, y []float64) (float64, error) {
			if err := requirePaired(x, y); err != nil {
				return 0, err
			}
			return stat.Covariance(x, y, nil), nil
		},
	}
}

func quantile(xs []float64, p float64) (float64, error) {
	if err := requireSamples(xs, 1); err != nil {
		return 0, err
	}
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("quantile must be between 0 and 1")
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil), nil
}

func requireSamples(xs []float64, n int) error {
	if len(xs) < n {
		return fmt.Errorf("need at least %d values", n)
	}
	return nil
}

func requirePaired(x, y []float64) error {
	if len(x) != len(y) {
		return fmt.Errorf("x and y arrays must have same length")
	}
	return requireSamples(x, 2)
}
