package service

import (
	"context"
	"encoding/json"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/tracing"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// 练习卷未指定时长时按题数折算
const practiceMinutesPerQuestion = 2

type CreateExamRequest struct {
	Name             string         `json:"name" validate:"required,max=255"`
	Level            string         `json:"level"`
	Type             model.ExamType `json:"type" validate:"omitempty,oneof=COURSE QUIZ"`
	TimeLimitMinutes int            `json:"timeLimitMinutes" validate:"gt=0"`
	QuestionCount    int            `json:"questionCount" validate:"gt=0"`
	CourseID         *uint          `json:"courseId"`
	TopicIDs         []uint         `json:"topicIds"`
	Difficulties     []string       `json:"difficulties" validate:"omitempty,dive,oneof=easy medium hard"`
	StartAt          *time.Time     `json:"startAt"`
	EndAt            *time.Time     `json:"endAt"`
	IsActive         *bool          `json:"isActive"`
}

type RandomizeRequest struct {
	Count        int      `json:"count" validate:"gt=0"`
	CourseID     *uint    `json:"courseId"`
	TopicID      uint     `json:"topicId"`
	TopicIDs     []uint   `json:"topicIds"`
	Difficulty   string   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Difficulties []string `json:"difficulties" validate:"omitempty,dive,oneof=easy medium hard"`
	Level        string   `json:"level"`
	// Append 为 true 时在现有题目之后追加，而不是整体替换
	Append bool `json:"append"`
}

type PracticeRequest struct {
	Name             string   `json:"name" validate:"max=255"`
	CourseID         *uint    `json:"courseId"`
	TopicIDs         []uint   `json:"topicIds"`
	Difficulties     []string `json:"difficulties" validate:"omitempty,dive,oneof=easy medium hard"`
	Count            int      `json:"count" validate:"gt=0"`
	TimeLimitMinutes int      `json:"timeLimitMinutes" validate:"omitempty,gt=0"`
}

type RetestRequest struct {
	Name             string `json:"name" validate:"max=255"`
	Count            int    `json:"count" validate:"omitempty,gt=0"`
	TimeLimitMinutes int    `json:"timeLimitMinutes" validate:"omitempty,gt=0"`
}

type UpdateExamRequest struct {
	Name             *string    `json:"name" validate:"omitempty,min=1,max=255"`
	TimeLimitMinutes *int       `json:"timeLimitMinutes" validate:"omitempty,gt=0"`
	IsActive         *bool      `json:"isActive"`
	StartAt          *time.Time `json:"startAt"`
	EndAt            *time.Time `json:"endAt"`
	ClearWindow      bool       `json:"clearWindow"`
}

type OptionView struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	IsCorrect *bool  `json:"isCorrect,omitempty"`
}

type QuestionView struct {
	Position   int                `json:"position"`
	QuestionID uint               `json:"questionId"`
	Stem       string             `json:"stem"`
	Type       model.QuestionType `json:"type"`
	Vignette   string             `json:"vignette,omitempty"`
	Marks      int                `json:"marks"`
	TopicID    uint               `json:"topicId"`
	Options    []OptionView       `json:"options"`
}

type ExamDetail struct {
	Exam      *model.Exam    `json:"exam"`
	Questions []QuestionView `json:"questions"`
}

// toQuestionViews 非管理员看不到正确答案
func toQuestionViews(links []model.ExamQuestion, withKeys bool) []QuestionView {
	views := make([]QuestionView, 0, len(links))
	for _, l := range links {
		v := QuestionView{Position: l.Position, QuestionID: l.QuestionID, Options: []OptionView{}}
		if l.Question != nil {
			v.Stem = l.Question.Stem
			v.Type = l.Question.Type
			v.Vignette = l.Question.Vignette
			v.Marks = l.Question.Marks
			v.TopicID = l.Question.TopicID
			for _, o := range l.Question.Options {
				ov := OptionView{ID: o.ID, Text: o.Text}
				if withKeys {
					ov.IsCorrect = util.BoolPtr(o.IsCorrect)
				}
				v.Options = append(v.Options, ov)
			}
		}
		views = append(views, v)
	}
	return views
}

type ExamService struct {
	ExamRepo        *repository.ExamRepository
	RemediationRepo *repository.RemediationRepository
	CatalogRepo     *repository.CatalogRepository
	EnrollmentRepo  *repository.EnrollmentRepository
	Pool            *QuestionPoolService
	Sampler         *Sampler
	Policy          *Policy
	Config          *config.ExamConfig
	Now             func() time.Time
}

func NewExamService(
	examRepo *repository.ExamRepository,
	remediationRepo *repository.RemediationRepository,
	catalogRepo *repository.CatalogRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	pool *QuestionPoolService,
	sampler *Sampler,
	policy *Policy,
	cfg *config.ExamConfig,
) *ExamService {
	return &ExamService{
		ExamRepo:        examRepo,
		RemediationRepo: remediationRepo,
		CatalogRepo:     catalogRepo,
		EnrollmentRepo:  enrollmentRepo,
		Pool:            pool,
		Sampler:         sampler,
		Policy:          policy,
		Config:          cfg,
		Now:             time.Now,
	}
}

func (s *ExamService) sample(pool []uint, n int) ([]uint, error) {
	ids, ok := s.Sampler.Take(pool, n)
	if !ok {
		monitoring.PoolConflicts.Inc()
		return nil, &util.AppError{
			Kind:    util.ErrConflict,
			Message: util.ErrPoolTooSmall.Message,
			Fields: map[string]string{
				"requested": strconv.Itoa(n),
				"available": strconv.Itoa(len(pool)),
			},
		}
	}
	return ids, nil
}

func filtersJSON(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// CreateCustom 创建自定义试卷并立即抽题
func (s *ExamService) CreateCustom(ctx context.Context, caller Caller, req CreateExamRequest) (*model.Exam, error) {
	ctx, span := tracing.Start(ctx, "ExamService.CreateCustom")
	defer span.End()

	if !s.Policy.CanCreateExam(caller) {
		return nil, util.ErrPermissionDenied
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	now := s.Now()
	admin := s.Policy.IsAdmin(caller)

	if !admin {
		fields := map[string]string{}
		if req.StartAt == nil {
			fields["startAt"] = "required for self-service exams"
		}
		if req.EndAt == nil {
			fields["endAt"] = "required for self-service exams"
		}
		if len(fields) > 0 {
			return nil, util.NewValidationError("self-service exams need an explicit window", fields)
		}
	}
	if req.StartAt != nil && req.EndAt != nil && !req.EndAt.After(*req.StartAt) {
		return nil, util.NewValidationError("invalid window", map[string]string{"endAt": "must be after startAt"})
	}

	examType := req.Type
	if examType == "" {
		examType = model.ExamCourse
		if len(req.TopicIDs) > 0 {
			examType = model.ExamQuiz
		}
	}

	level := req.Level
	if level == "" {
		var err error
		level, err = s.deriveLevel(ctx, examType, req.CourseID, req.TopicIDs)
		if err != nil {
			return nil, err
		}
	}

	if !admin {
		open, err := s.ExamRepo.FindOpenSelfCreated(ctx, caller.UserID, now)
		if err != nil {
			return nil, err
		}
		count := 0
		for i := range open {
			if open[i].IsOpenOrPending(now) {
				count++
			}
		}
		if count >= s.Config.SelfServiceMaxOpen {
			return nil, util.ErrOpenExamExists
		}
	}

	filter := PoolFilter{TopicIDs: req.TopicIDs, Difficulties: req.Difficulties, RequireFullPath: true}
	if req.CourseID != nil {
		filter.CourseID = *req.CourseID
	}
	pool, err := s.Pool.Select(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids, err := s.sample(pool, req.QuestionCount)
	if err != nil {
		return nil, err
	}

	exam := &model.Exam{
		Name:             req.Name,
		Level:            level,
		TimeLimitMinutes: req.TimeLimitMinutes,
		Type:             examType,
		CourseID:         req.CourseID,
		StartAt:          req.StartAt,
		EndAt:            req.EndAt,
		Filters:          filtersJSON(filter),
	}
	if len(req.TopicIDs) > 0 {
		exam.TopicID = util.UintPtr(req.TopicIDs[0])
	}
	if admin {
		// 管理员发布的试卷默认不启用，需显式激活
		exam.IsActive = req.IsActive != nil && *req.IsActive
	} else {
		exam.CreatorID = util.UintPtr(caller.UserID)
		exam.IsActive = true
	}

	if _, err := s.ExamRepo.CreateWithQuestions(ctx, exam, ids); err != nil {
		return nil, err
	}

	logger.Log.Info("Exam created",
		zap.Uint("examID", exam.ID),
		zap.Uint("userID", caller.UserID),
		zap.String("type", string(exam.Type)),
		zap.Int("questions", len(ids)))
	return exam, nil
}

// deriveLevel QUIZ 取第一个知识点的 level，COURSE 取课程的 level
func (s *ExamService) deriveLevel(ctx context.Context, examType model.ExamType, courseID *uint, topicIDs []uint) (string, error) {
	if examType == model.ExamQuiz && len(topicIDs) > 0 {
		topic, err := s.CatalogRepo.FindTopic(ctx, topicIDs[0])
		if err != nil {
			if repository.IsNotFound(err) {
				return "", util.ErrTopicNotFound
			}
			return "", err
		}
		return topic.Level, nil
	}
	if courseID != nil {
		course, err := s.CatalogRepo.FindCourse(ctx, *courseID)
		if err != nil {
			if repository.IsNotFound(err) {
				return "", util.ErrCourseNotFound
			}
			return "", err
		}
		return course.Level, nil
	}
	return "", nil
}

// loadManaged 他人自建的试卷返回 NotFound，公共试卷无权限返回 Forbidden
func (s *ExamService) loadManaged(ctx context.Context, caller Caller, examID uint) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindByID(ctx, examID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}
	if !s.Policy.CanReadExam(caller, exam) {
		return nil, util.ErrExamNotFound
	}
	if !s.Policy.CanManageExam(caller, exam) {
		return nil, util.ErrPermissionDenied
	}
	return exam, nil
}

// Randomize 以试卷自身的课程与知识点为默认条件重新抽题
func (s *ExamService) Randomize(ctx context.Context, caller Caller, examID uint, req RandomizeRequest) ([]model.ExamQuestion, error) {
	ctx, span := tracing.Start(ctx, "ExamService.Randomize")
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	exam, err := s.loadManaged(ctx, caller, examID)
	if err != nil {
		return nil, err
	}

	filter := PoolFilter{
		TopicID:      req.TopicID,
		TopicIDs:     req.TopicIDs,
		Difficulty:   req.Difficulty,
		Difficulties: req.Difficulties,
		Level:        req.Level,
	}
	if req.CourseID != nil {
		filter.CourseID = *req.CourseID
	} else if exam.CourseID != nil {
		filter.CourseID = *exam.CourseID
	}
	if filter.TopicID == 0 && len(filter.TopicIDs) == 0 && exam.TopicID != nil {
		filter.TopicID = *exam.TopicID
	}

	var exclude []uint
	if req.Append {
		exclude, err = s.ExamRepo.ListQuestionIDs(ctx, exam.ID)
		if err != nil {
			return nil, err
		}
	}
	pool, err := s.Pool.SelectExcluding(ctx, filter, exclude)
	if err != nil {
		return nil, err
	}
	ids, err := s.sample(pool, req.Count)
	if err != nil {
		return nil, err
	}

	links, err := s.ExamRepo.ReplaceQuestions(ctx, exam.ID, ids, req.Append, filtersJSON(filter))
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Exam randomized",
		zap.Uint("examID", exam.ID),
		zap.Int("questions", len(ids)),
		zap.Bool("append", req.Append))
	return links, nil
}

// GeneratePractice 为学习者生成一份新的练习卷，指定课程时要求已报名
func (s *ExamService) GeneratePractice(ctx context.Context, caller Caller, req PracticeRequest) (*model.Exam, error) {
	ctx, span := tracing.Start(ctx, "ExamService.GeneratePractice")
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if req.CourseID != nil && !s.Policy.BypassEnrollment(caller) {
		enrolled, err := s.EnrollmentRepo.IsEnrolled(ctx, caller.UserID, *req.CourseID)
		if err != nil {
			return nil, err
		}
		if !enrolled {
			return nil, util.ErrNotEnrolled
		}
	}
	level, err := s.deriveLevel(ctx, model.ExamQuiz, req.CourseID, req.TopicIDs)
	if err != nil {
		return nil, err
	}

	filter := PoolFilter{TopicIDs: req.TopicIDs, Difficulties: req.Difficulties}
	if req.CourseID != nil {
		filter.CourseID = *req.CourseID
	}
	pool, err := s.Pool.Select(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids, err := s.sample(pool, req.Count)
	if err != nil {
		return nil, err
	}

	exam := &model.Exam{
		Name:             req.Name,
		Level:            level,
		TimeLimitMinutes: req.TimeLimitMinutes,
		Type:             model.ExamPractice,
		CourseID:         req.CourseID,
		IsActive:         true,
		CreatorID:        util.UintPtr(caller.UserID),
		Filters:          filtersJSON(filter),
	}
	if exam.Name == "" {
		exam.Name = "Practice " + s.Now().Format(util.TimeFormat)
	}
	if exam.TimeLimitMinutes == 0 {
		exam.TimeLimitMinutes = req.Count * practiceMinutesPerQuestion
	}
	if len(req.TopicIDs) > 0 {
		exam.TopicID = util.UintPtr(req.TopicIDs[0])
	}

	if _, err := s.ExamRepo.CreateWithQuestions(ctx, exam, ids); err != nil {
		return nil, err
	}
	logger.Log.Info("Practice exam generated", zap.Uint("examID", exam.ID), zap.Uint("userID", caller.UserID))
	return exam, nil
}

// GenerateRetest 仅从尚未重测的错题中抽题
func (s *ExamService) GenerateRetest(ctx context.Context, caller Caller, req RetestRequest) (*model.Exam, error) {
	ctx, span := tracing.Start(ctx, "ExamService.GenerateRetest")
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	pool, err := s.RemediationRepo.UnresolvedMistakeQuestionIDs(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, util.ErrMistakeBankEmpty
	}

	size := req.Count
	if size == 0 {
		size = s.Config.RetestDefaultSize
		if size > len(pool) {
			size = len(pool)
		}
	}
	ids, err := s.sample(pool, size)
	if err != nil {
		return nil, err
	}

	exam := &model.Exam{
		Name:             req.Name,
		TimeLimitMinutes: req.TimeLimitMinutes,
		Type:             model.ExamRetest,
		IsActive:         true,
		CreatorID:        util.UintPtr(caller.UserID),
	}
	if exam.Name == "" {
		exam.Name = "Retest " + s.Now().Format(util.TimeFormat)
	}
	if exam.TimeLimitMinutes == 0 {
		exam.TimeLimitMinutes = size * practiceMinutesPerQuestion
	}

	if _, err := s.ExamRepo.CreateWithQuestions(ctx, exam, ids); err != nil {
		return nil, err
	}
	logger.Log.Info("Retest exam generated",
		zap.Uint("examID", exam.ID),
		zap.Uint("userID", caller.UserID),
		zap.Int("questions", size))
	return exam, nil
}

// Update 只允许修改启用状态、时间窗口、名称与时长
func (s *ExamService) Update(ctx context.Context, caller Caller, examID uint, req UpdateExamRequest) (*model.Exam, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	exam, err := s.ExamRepo.FindByID(ctx, examID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}
	if !s.Policy.CanReadExam(caller, exam) {
		return nil, util.ErrExamNotFound
	}
	if !s.Policy.CanUpdateExam(caller, exam) {
		return nil, util.ErrPermissionDenied
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.TimeLimitMinutes != nil {
		fields["time_limit_minutes"] = *req.TimeLimitMinutes
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}

	startAt, endAt := exam.StartAt, exam.EndAt
	if req.ClearWindow {
		startAt, endAt = nil, nil
		fields["start_at"] = nil
		fields["end_at"] = nil
	}
	if req.StartAt != nil {
		startAt = req.StartAt
		fields["start_at"] = *req.StartAt
	}
	if req.EndAt != nil {
		endAt = req.EndAt
		fields["end_at"] = *req.EndAt
	}
	if startAt != nil && endAt != nil && !endAt.After(*startAt) {
		return nil, util.NewValidationError("invalid window", map[string]string{"endAt": "must be after startAt"})
	}

	if len(fields) > 0 {
		if err := s.ExamRepo.Update(ctx, exam.ID, fields); err != nil {
			return nil, err
		}
	}
	return s.ExamRepo.FindByID(ctx, exam.ID)
}

// Delete 级联删除该试卷的全部尝试
func (s *ExamService) Delete(ctx context.Context, caller Caller, examID uint) error {
	exam, err := s.loadManaged(ctx, caller, examID)
	if err != nil {
		return err
	}
	if err := s.ExamRepo.Delete(ctx, exam.ID); err != nil {
		return err
	}
	logger.Log.Info("Exam deleted", zap.Uint("examID", exam.ID), zap.Uint("userID", caller.UserID))
	return nil
}

func (s *ExamService) Get(ctx context.Context, caller Caller, examID uint) (*ExamDetail, error) {
	exam, err := s.ExamRepo.FindByID(ctx, examID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}
	if !s.Policy.CanReadExam(caller, exam) {
		return nil, util.ErrExamNotFound
	}
	links, err := s.ExamRepo.ListQuestions(ctx, exam.ID)
	if err != nil {
		return nil, err
	}
	return &ExamDetail{Exam: exam, Questions: toQuestionViews(links, s.Policy.IsAdmin(caller))}, nil
}

func (s *ExamService) ListMine(ctx context.Context, caller Caller) ([]model.Exam, error) {
	return s.ExamRepo.ListByCreator(ctx, caller.UserID)
}
