package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"
)

// ErrPlanNotFound 找不到指定 id 的行程
var ErrPlanNotFound = errors.New("plan not found")

// PlanStore 行程的存放位置 (MongoDB 或記憶體)
type PlanStore interface {
	List(ctx context.Context) ([]StoredPlan, error)
	Get(ctx context.Context, id string) (*StoredPlan, error)
	Create(ctx context.Context, p *StoredPlan) error
	Update(ctx context.Context, id string, patch PlanPatch) error
	Delete(ctx context.Context, id string) error
	Name() string
}

// ========== 記憶體存儲 ==========

// MemoryStore 沒有 MongoDB 時使用；設定 dataFile 時每次寫入都存成 JSON 檔，
// 寫檔失敗時記憶體內的變更也會還原
type MemoryStore struct {
	mu       sync.RWMutex
	plans    map[string]*StoredPlan
	dataFile string
	logger   *slog.Logger
}

func NewMemoryStore(dataFile string, logger *slog.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MemoryStore{plans: make(map[string]*StoredPlan), dataFile: dataFile, logger: logger}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) List(_ context.Context) ([]StoredPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]StoredPlan, 0, len(s.plans))
	for _, p := range s.plans {
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*StoredPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Create(_ context.Context, p *StoredPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[p.ID]; exists {
		return fmt.Errorf("plan %s already exists", p.ID)
	}
	cp := *p
	s.plans[p.ID] = &cp
	if err := s.save(); err != nil {
		delete(s.plans, p.ID)
		return err
	}
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch PlanPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[id]
	if !ok {
		return ErrPlanNotFound
	}
	old := *p
	patch.apply(p, time.Now())
	if err := s.save(); err != nil {
		*p = old
		return err
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[id]
	if !ok {
		return ErrPlanNotFound
	}
	delete(s.plans, id)
	if err := s.save(); err != nil {
		s.plans[id] = p
		return err
	}
	return nil
}

func (s *MemoryStore) load() error {
	if s.dataFile == "" {
		return nil
	}
	data, err := os.ReadFile(s.dataFile)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no existing data file, starting fresh", "file", s.dataFile)
			return nil
		}
		return fmt.Errorf("load plans: %w", err)
	}

	var loaded map[string]*StoredPlan
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse plans data: %w", err)
	}
	if loaded != nil {
		s.plans = loaded
	}
	s.logger.Info("loaded plans", "count", len(s.plans), "file", s.dataFile)
	return nil
}

// save 呼叫前必須持有寫鎖
func (s *MemoryStore) save() error {
	if s.dataFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.plans, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plans: %w", err)
	}
	if err := os.WriteFile(s.dataFile, data, 0o644); err != nil {
		return fmt.Errorf("save plans: %w", err)
	}
	return nil
}
