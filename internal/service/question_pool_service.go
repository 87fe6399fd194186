package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/tracing"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// PoolFilter 题库筛选条件，零值字段不参与筛选
type PoolFilter struct {
	CourseID     uint     `json:"courseId"`
	VolumeID     uint     `json:"volumeId"`
	ModuleID     uint     `json:"moduleId"`
	TopicID      uint     `json:"topicId"`
	TopicIDs     []uint   `json:"topicIds"`
	Difficulty   string   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Difficulties []string `json:"difficulties" validate:"omitempty,dive,oneof=easy medium hard"`
	Level        string   `json:"level"`

	RequireFullPath bool `json:"-"`
}

func (f PoolFilter) toRepo() repository.QuestionFilter {
	rf := repository.QuestionFilter{
		CourseID: f.CourseID,
		VolumeID: f.VolumeID,
		ModuleID: f.ModuleID,
		Level:    f.Level,

		RequireFullPath: f.RequireFullPath,
	}
	rf.TopicIDs = mergeUint(f.TopicID, f.TopicIDs)
	if f.Difficulty != "" {
		rf.Difficulties = append(rf.Difficulties, f.Difficulty)
	}
	for _, d := range f.Difficulties {
		if d != f.Difficulty {
			rf.Difficulties = append(rf.Difficulties, d)
		}
	}
	return rf
}

func mergeUint(single uint, many []uint) []uint {
	seen := make(map[uint]bool)
	var out []uint
	if single != 0 {
		out = append(out, single)
		seen[single] = true
	}
	for _, id := range many {
		if id != 0 && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	return out
}

// PathIDs 由知识点向上回溯得到的完整分类路径
type PathIDs struct {
	CourseID uint `json:"courseId"`
	VolumeID uint `json:"volumeId"`
	ModuleID uint `json:"moduleId"`
	TopicID  uint `json:"topicId"`
}

type PathLookup interface {
	FindTopic(ctx context.Context, id uint) (*model.Topic, error)
	FindModule(ctx context.Context, id uint) (*model.Module, error)
	FindVolume(ctx context.Context, id uint) (*model.Volume, error)
}

// DerivePath 沿 topic -> module -> volume -> course 回溯；任一环节缺失即为不完整路径
func DerivePath(ctx context.Context, lookup PathLookup, topicID uint) (PathIDs, error) {
	topic, err := lookup.FindTopic(ctx, topicID)
	if err != nil {
		if repository.IsNotFound(err) {
			return PathIDs{}, util.ErrTopicNotFound
		}
		return PathIDs{}, err
	}
	path := PathIDs{TopicID: topic.ID}

	module, err := lookup.FindModule(ctx, topic.ModuleID)
	if err != nil {
		return path, incompletePath(err)
	}
	path.ModuleID = module.ID

	volume, err := lookup.FindVolume(ctx, module.VolumeID)
	if err != nil {
		return path, incompletePath(err)
	}
	path.VolumeID = volume.ID

	if volume.CourseID == 0 {
		return path, util.ErrIncompletePath
	}
	path.CourseID = volume.CourseID
	return path, nil
}

func incompletePath(err error) error {
	if repository.IsNotFound(err) {
		return util.ErrIncompletePath
	}
	return err
}

type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type ImportReport struct {
	Imported    int        `json:"imported"`
	QuestionIDs []uint     `json:"questionIds"`
	Errors      []RowError `json:"errors"`
}

var importColumns = []string{"stem", "type", "level", "difficulty", "marks", "topic_id", "vignette", "options", "correct"}

type QuestionPoolService struct {
	QuestionRepo *repository.QuestionRepository
	CatalogRepo  *repository.CatalogRepository
	Storage      *StorageService
	Policy       *Policy
}

func NewQuestionPoolService(
	questionRepo *repository.QuestionRepository,
	catalogRepo *repository.CatalogRepository,
	storage *StorageService,
	policy *Policy,
) *QuestionPoolService {
	return &QuestionPoolService{
		QuestionRepo: questionRepo,
		CatalogRepo:  catalogRepo,
		Storage:      storage,
		Policy:       policy,
	}
}

// Select 返回完整匹配集合（不分页），调用方据此判断题量是否足够
func (s *QuestionPoolService) Select(ctx context.Context, f PoolFilter) ([]uint, error) {
	if err := validateRequest(f); err != nil {
		return nil, err
	}
	return s.QuestionRepo.SelectIDs(ctx, f.toRepo())
}

func (s *QuestionPoolService) SelectExcluding(ctx context.Context, f PoolFilter, exclude []uint) ([]uint, error) {
	if err := validateRequest(f); err != nil {
		return nil, err
	}
	rf := f.toRepo()
	rf.ExcludeIDs = exclude
	return s.QuestionRepo.SelectIDs(ctx, rf)
}

func (s *QuestionPoolService) DerivePath(ctx context.Context, topicID uint) (PathIDs, error) {
	return DerivePath(ctx, s.CatalogRepo, topicID)
}

// ImportFromStorage 从对象存储读取 CSV 后导入
func (s *QuestionPoolService) ImportFromStorage(ctx context.Context, caller Caller, objectKey string) (*ImportReport, error) {
	if !s.Policy.CanImportQuestions(caller) {
		return nil, util.ErrPermissionDenied
	}
	if s.Storage == nil {
		return nil, errors.New("storage is not configured")
	}
	rc, err := s.Storage.Provider.Open(ctx, objectKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return s.ImportCSV(ctx, caller, rc)
}

// ImportCSV 逐行校验并各自提交，失败行收集到报告中，不影响其他行
func (s *QuestionPoolService) ImportCSV(ctx context.Context, caller Caller, r io.Reader) (*ImportReport, error) {
	if !s.Policy.CanImportQuestions(caller) {
		return nil, util.ErrPermissionDenied
	}
	ctx, span := tracing.Start(ctx, "QuestionPoolService.ImportCSV")
	defer span.End()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, util.NewValidationError("csv header is missing", map[string]string{"file": err.Error()})
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{QuestionIDs: []uint{}, Errors: []RowError{}}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			report.Errors = append(report.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}

		q, err := s.questionFromRecord(ctx, record, index)
		if err == nil {
			err = s.QuestionRepo.Create(ctx, q)
		}
		if err != nil {
			report.Errors = append(report.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}
		report.Imported++
		report.QuestionIDs = append(report.QuestionIDs, q.ID)
	}

	logger.Log.Info("Question import finished",
		zap.Uint("userID", caller.UserID),
		zap.Int("imported", report.Imported),
		zap.Int("failed", len(report.Errors)))
	return report, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	missing := make(map[string]string)
	for _, col := range []string{"stem", "type", "marks", "topic_id"} {
		if _, ok := index[col]; !ok {
			missing[col] = "column is required"
		}
	}
	if len(missing) > 0 {
		return nil, util.NewValidationError("csv header is incomplete", missing)
	}
	return index, nil
}

func field(record []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (s *QuestionPoolService) questionFromRecord(ctx context.Context, record []string, index map[string]int) (*model.Question, error) {
	marks, err := strconv.Atoi(field(record, index, "marks"))
	if err != nil {
		return nil, fmt.Errorf("marks: %w", err)
	}
	topicID, err := strconv.ParseUint(field(record, index, "topic_id"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("topic_id: %w", err)
	}

	q := &model.Question{
		Stem:       field(record, index, "stem"),
		Type:       model.QuestionType(field(record, index, "type")),
		Level:      field(record, index, "level"),
		Difficulty: strings.ToLower(field(record, index, "difficulty")),
		Marks:      marks,
		Vignette:   field(record, index, "vignette"),
	}
	if q.Difficulty == "" {
		q.Difficulty = model.DifficultyMedium
	}
	if !model.ValidDifficulty(q.Difficulty) {
		return nil, fmt.Errorf("difficulty %q is not one of easy, medium, hard", q.Difficulty)
	}

	options, err := parseOptions(field(record, index, "options"), field(record, index, "correct"))
	if err != nil {
		return nil, err
	}
	q.Options = options

	if err := q.Validate(); err != nil {
		return nil, err
	}

	path, err := s.DerivePath(ctx, uint(topicID))
	if err != nil {
		return nil, err
	}
	q.CourseID, q.VolumeID, q.ModuleID, q.TopicID = path.CourseID, path.VolumeID, path.ModuleID, path.TopicID

	if q.Level == "" {
		if topic, err := s.CatalogRepo.FindTopic(ctx, path.TopicID); err == nil {
			q.Level = topic.Level
		}
	}
	return q, nil
}

// parseOptions 选项以 | 分隔，correct 为从 1 开始的正确选项序号，多个同样以 | 分隔
func parseOptions(raw, correct string) ([]model.QuestionOption, error) {
	if raw == "" {
		return nil, nil
	}
	texts := strings.Split(raw, "|")
	options := make([]model.QuestionOption, len(texts))
	for i, t := range texts {
		options[i] = model.QuestionOption{Text: strings.TrimSpace(t), Position: i + 1}
	}
	if correct == "" {
		return options, nil
	}
	for _, c := range strings.Split(correct, "|") {
		n, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil || n < 1 || n > len(options) {
			return nil, fmt.Errorf("correct option %q is out of range", c)
		}
		options[n-1].IsCorrect = true
	}
	return options, nil
}
