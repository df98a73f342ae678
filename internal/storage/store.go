// Package storage persists simulated muscle runs: one directory per run with
// metadata.json and states.csv, plus a single-file JSON export.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/fesim/internal/dynamo"
)

var ErrNoRun = errors.New("storage: run not found")

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes how a run was produced.
type RunMetadata struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Muscle     string             `json:"muscle,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Integrator string             `json:"integrator"`
	Controller string             `json:"controller"`
	PulseMode  string             `json:"pulse_mode"`
	StimTimes  []float64          `json:"stim_time"`
	Durations  []float64          `json:"pulse_duration,omitempty"`
	Intensity  []float64          `json:"pulse_intensity,omitempty"`
	Dt         float64            `json:"dt"`
	FinalTime  float64            `json:"final_time"`
	NShooting  int                `json:"n_shooting"`
	StateNames []string           `json:"state_names"`
	Params     map[string]float64 `json:"params,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes a run and returns its id. The id is derived from the model
// name and the timestamp; a numeric suffix keeps ids unique within a second.
func (s *Store) Save(meta RunMetadata, result *dynamo.Result) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}

	meta.Timestamp = s.now()
	base := fmt.Sprintf("%s_%d", meta.Model, meta.Timestamp.Unix())
	runID := base
	for i := 1; ; i++ {
		err := os.Mkdir(filepath.Join(s.baseDir, runID), 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return "", err
		}
		runID = fmt.Sprintf("%s_%d", base, i)
	}
	runDir := filepath.Join(s.baseDir, runID)

	meta.ID = runID
	meta.Metrics = result.Metrics
	if len(meta.StateNames) == 0 {
		meta.StateNames = result.Names
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, meta.StateNames, result); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteCSV writes time, the states and the coupling controls, one row per
// sample. Unnamed state columns are called x0, x1, ...
func WriteCSV(out io.Writer, names []string, result *dynamo.Result) error {
	w := csv.NewWriter(out)

	if len(result.States) == 0 {
		w.Flush()
		return w.Error()
	}

	header := []string{"time"}
	for i := range result.States[0] {
		if i < len(names) {
			header = append(header, names[i])
		} else {
			header = append(header, fmt.Sprintf("x%d", i))
		}
	}

	numControls := 0
	if len(result.Controls) > 0 {
		numControls = len(result.Controls[0])
		for i := 0; i < numControls; i++ {
			header = append(header, fmt.Sprintf("u%d", i))
		}
	}

	if err := w.Write(header); err != nil {
		return err
	}

	for i := range result.States {
		row := []string{strconv.FormatFloat(result.Times[i], 'g', -1, 64)}
		for _, val := range result.States[i] {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}

		// the final sample has no control of its own
		if i < len(result.Controls) {
			for _, val := range result.Controls[i] {
				row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
			}
		} else {
			for j := 0; j < numControls; j++ {
				row = append(row, "")
			}
		}

		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s metadata: %w", runID, err)
	}
	return &meta, nil
}

// LoadStates reads the state columns of a run back. Control columns are
// dropped.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, []string, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
		}
		return nil, nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil, nil
	}

	var names []string
	for _, h := range records[0][1:] {
		if len(h) > 1 && h[0] == 'u' {
			if _, err := strconv.Atoi(h[1:]); err == nil {
				break
			}
		}
		names = append(names, h)
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)

	for _, record := range records[1:] {
		if len(record) < len(names)+1 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}

		state := make([]float64, len(names))
		for j := range names {
			val, err := strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("storage: %s row at t=%g: %w", runID, t, err)
			}
			state[j] = val
		}
		times = append(times, t)
		states = append(states, state)
	}

	return states, times, names, nil
}

// ExportData is the self-contained JSON form of a run.
type ExportData struct {
	RunMetadata
	Times    []float64   `json:"times"`
	States   [][]float64 `json:"states"`
	Controls [][]float64 `json:"controls"`
}

// NewExport bundles meta and result.
func NewExport(meta RunMetadata, result *dynamo.Result) ExportData {
	data := ExportData{
		RunMetadata: meta,
		Times:       result.Times,
		States:      make([][]float64, len(result.States)),
		Controls:    make([][]float64, len(result.Controls)),
	}
	if data.Metrics == nil {
		data.Metrics = result.Metrics
	}
	if len(data.StateNames) == 0 {
		data.StateNames = result.Names
	}
	for i, s := range result.States {
		data.States[i] = s
	}
	for i, c := range result.Controls {
		data.Controls[i] = c
	}
	return data
}

// ExportJSON writes data as indented JSON to out.
func ExportJSON(out io.Writer, data ExportData) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// LoadExport rebuilds the export of a stored run.
func (s *Store) LoadExport(runID string) (ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return ExportData{}, err
	}
	states, times, _, err := s.LoadStates(runID)
	if err != nil {
		return ExportData{}, err
	}
	return ExportData{RunMetadata: *meta, Times: times, States: states}, nil
}
