package venue

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Factory는 설정으로부터 어댑터를 생성하는 함수 타입입니다
type Factory func(spec VenueSpec, log *logrus.Entry) (Adapter, error)

// Registry는 거래 장소 종류별 팩토리를 관리합니다.
// 전역 인스턴스 없이 호출 측이 만들어 주입합니다.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry는 새로운 레지스트리를 생성합니다
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register는 종류별 팩토리를 등록합니다
func (r *Registry) Register(kind string, factory Factory) {
	r.factories[kind] = factory
}

// Build는 설정에 맞는 어댑터를 생성합니다
func (r *Registry) Build(spec VenueSpec, log *logrus.Entry) (Adapter, error) {
	factory, exists := r.factories[spec.Kind]
	if !exists {
		return nil, fmt.Errorf("존재하지 않는 거래 장소 종류: %s", spec.Kind)
	}
	adapter, err := factory(spec, log.WithField("venue", spec.Name))
	if err != nil {
		return nil, fmt.Errorf("거래 장소 %s 생성 실패: %w", spec.Name, err)
	}
	return adapter, nil
}

// BuildAll은 모든 설정에 대해 어댑터를 생성합니다. 실패하면 이미 만든 어댑터를 닫습니다.
func (r *Registry) BuildAll(specs []VenueSpec, log *logrus.Entry) (map[string]Adapter, error) {
	adapters := make(map[string]Adapter, len(specs))
	for _, spec := range specs {
		adapter, err := r.Build(spec, log)
		if err != nil {
			for _, a := range adapters {
				_ = a.Close()
			}
			return nil, err
		}
		adapters[spec.Name] = adapter
	}
	return adapters, nil
}

// Kinds는 등록된 종류를 정렬해서 반환합니다
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
