package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Thapan6/StudentReportCard/internal/grading"
	"github.com/Thapan6/StudentReportCard/internal/model"
	"gorm.io/gorm"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"

	batchSize = 500
)

// importColumns are the CSV headers an import needs. Derived columns in the
// file are ignored and recomputed.
var importColumns = []string{"name", "roll", "math", "science", "english"}

type ProgressInfo struct {
	FileName     string
	TotalRecords int
	Processed    int
	Failed       int
	Status       string // "processing", "completed", "error"
	Error        string
	StartTime    time.Time
	EndTime      time.Time
}

// UploadService imports student CSV files and tracks per-file progress.
type UploadService struct {
	db                *gorm.DB
	fileProgressMap   map[string]*ProgressInfo
	fileProgressLock  sync.RWMutex
	progressListeners map[chan *ProgressInfo]bool
	listenerLock      sync.RWMutex

	workerSemaphore chan struct{} // caps workers across concurrent imports
}

func NewUploadService(db *gorm.DB) *UploadService {
	return &UploadService{
		db:                db,
		fileProgressMap:   make(map[string]*ProgressInfo),
		progressListeners: make(map[chan *ProgressInfo]bool),
		workerSemaphore:   make(chan struct{}, runtime.NumCPU()*2),
	}
}

func (s *UploadService) RegisterProgressListener(ch chan *ProgressInfo) {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	s.progressListeners[ch] = true
}

func (s *UploadService) UnregisterProgressListener(ch chan *ProgressInfo) {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	delete(s.progressListeners, ch)
}

// BroadcastProgress sends a snapshot to every listener that is ready for it.
func (s *UploadService) BroadcastProgress(progress *ProgressInfo) {
	s.listenerLock.RLock()
	defer s.listenerLock.RUnlock()

	for listener := range s.progressListeners {
		snapshot := *progress
		select {
		case listener <- &snapshot:
		default:
		}
	}
}

func (s *UploadService) GetFileProgress(fileName string) *ProgressInfo {
	s.fileProgressLock.RLock()
	defer s.fileProgressLock.RUnlock()

	if progress, exists := s.fileProgressMap[fileName]; exists {
		copyProgress := *progress
		return &copyProgress
	}
	return nil
}

func (s *UploadService) GetAllFileProgress() []*ProgressInfo {
	s.fileProgressLock.RLock()
	defer s.fileProgressLock.RUnlock()

	result := make([]*ProgressInfo, 0, len(s.fileProgressMap))
	for _, progress := range s.fileProgressMap {
		copyProgress := *progress
		result = append(result, &copyProgress)
	}
	return result
}

func (s *UploadService) updateProgress(fileName string, processed, failed int) {
	s.fileProgressLock.Lock()
	defer s.fileProgressLock.Unlock()

	if progress, exists := s.fileProgressMap[fileName]; exists {
		progress.Processed += processed
		progress.Failed += failed
		if progress.TotalRecords > 0 && progress.Processed > progress.TotalRecords {
			progress.Processed = progress.TotalRecords
		}
		s.BroadcastProgress(progress)
	}
}

func (s *UploadService) updateProgressError(fileName string, errorMsg string) {
	s.fileProgressLock.Lock()
	defer s.fileProgressLock.Unlock()

	if progress, exists := s.fileProgressMap[fileName]; exists {
		progress.Status = StatusError
		progress.Error = errorMsg
		progress.EndTime = time.Now()
		s.BroadcastProgress(progress)
	}
}

// ProcessCSV imports every valid row of the file. Rows are parsed and graded
// by a worker pool; a single saver writes batches to the store. It returns
// once the whole file has been handled.
func (s *UploadService) ProcessCSV(filePath string) error {
	fileName := filepath.Base(filePath)
	startTime := time.Now()

	s.fileProgressLock.Lock()
	s.fileProgressMap[fileName] = &ProgressInfo{
		FileName:  fileName,
		Status:    StatusProcessing,
		StartTime: startTime,
	}
	s.fileProgressLock.Unlock()

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		s.updateProgressError(fileName, "Failed to get file info: "+err.Error())
		return err
	}

	totalRecords, err := s.countRecords(filePath)
	if err != nil {
		s.updateProgressError(fileName, "Failed to count records: "+err.Error())
		return err
	}

	s.fileProgressLock.Lock()
	s.fileProgressMap[fileName].TotalRecords = totalRecords
	s.fileProgressLock.Unlock()

	file, err := os.Open(filePath)
	if err != nil {
		s.updateProgressError(fileName, "Failed to open file: "+err.Error())
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		s.updateProgressError(fileName, "Failed to read header: "+err.Error())
		return err
	}
	columns, err := columnIndex(header)
	if err != nil {
		s.updateProgressError(fileName, err.Error())
		return err
	}

	numWorkers := calculateWorkers(fileInfo.Size())
	slog.Info("importing students", "file", fileName, "workers", numWorkers, "rows", totalRecords)

	rowCh := make(chan []string, numWorkers*100)
	studentCh := make(chan model.Student, batchSize)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go s.worker(fileName, columns, rowCh, studentCh, &wg)
	}

	saved := make(chan error, 1)
	go func() {
		saved <- s.saver(fileName, studentCh)
	}()

	go func() {
		defer close(rowCh)
		line := 1
		for {
			record, err := reader.Read()
			line++
			if err == io.EOF {
				return
			}
			if err != nil {
				slog.Warn("skipping unreadable CSV row", "file", fileName, "line", line, "error", err)
				s.updateProgress(fileName, 0, 1)
				var parseErr *csv.ParseError
				if errors.As(err, &parseErr) {
					continue
				}
				return
			}
			rowCh <- record
		}
	}()

	wg.Wait()
	close(studentCh)
	if err := <-saved; err != nil {
		s.updateProgressError(fileName, "Failed to save students: "+err.Error())
		return err
	}

	s.fileProgressLock.Lock()
	if progress, exists := s.fileProgressMap[fileName]; exists {
		progress.Status = StatusCompleted
		progress.EndTime = time.Now()
		s.BroadcastProgress(progress)
	}
	s.fileProgressLock.Unlock()

	slog.Info("import completed", "file", fileName, "elapsed", time.Since(startTime))
	return nil
}

func (s *UploadService) worker(fileName string, columns map[string]int, rowCh <-chan []string, studentCh chan<- model.Student, wg *sync.WaitGroup) {
	s.workerSemaphore <- struct{}{}
	defer func() {
		<-s.workerSemaphore
		wg.Done()
	}()

	for record := range rowCh {
		student, err := parseRecord(columns, record)
		if err != nil {
			slog.Warn("skipping invalid student row", "file", fileName, "row", record, "error", err)
			s.updateProgress(fileName, 0, 1)
			continue
		}
		studentCh <- student
	}
}

func (s *UploadService) saver(fileName string, studentCh <-chan model.Student) error {
	var batch []model.Student
	var firstErr error
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.saveBatch(batch); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.updateProgress(fileName, 0, len(batch))
		} else {
			s.updateProgress(fileName, len(batch), 0)
		}
		batch = nil
	}

	for student := range studentCh {
		batch = append(batch, student)
		if len(batch) >= batchSize {
			flush()
		}
	}
	flush()
	return firstErr
}

func (s *UploadService) saveBatch(students []model.Student) error {
	if len(students) == 0 {
		return nil
	}
	return s.db.CreateInBatches(students, batchSize).Error
}

func (s *UploadService) countRecords(filePath string) (int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, err
	}

	count := 0
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return count, err
			}
		}
		count++
	}
	return count, nil
}

// calculateWorkers sizes the pool by file size.
func calculateWorkers(fileSize int64) int {
	cpus := runtime.NumCPU()

	if fileSize < 1_000_000 {
		return min(2, cpus)
	}
	if fileSize < 10_000_000 {
		return min(4, cpus)
	}
	if fileSize < 100_000_000 {
		return min(8, cpus)
	}
	return cpus
}

func columnIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, c := range importColumns {
		if _, ok := columns[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func parseRecord(columns map[string]int, record []string) (model.Student, error) {
	field := func(name string) string {
		i := columns[name]
		if i >= len(record) {
			return ""
		}
		return record[i]
	}

	marks, err := grading.ParseScores(field("math"), field("science"), field("english"))
	if err != nil {
		return model.Student{}, err
	}
	return buildStudent(StudentInput{
		Name:  field("name"),
		Roll:  field("roll"),
		Marks: marks,
	})
}
