package optimize

import (
	"github.com/forgelab/wasmforge/optimize/internal/binscan"
	"github.com/forgelab/wasmforge/wasm"
)

// CompactNamesPass strips the debug-only custom sections: "name" and
// "sourceMappingURL". Neither affects execution.
type CompactNamesPass struct{}

func (p *CompactNamesPass) Name() string { return "compact-names" }

func (p *CompactNamesPass) Run(data []byte) ([]byte, bool, error) {
	m, err := binscan.Parse(data)
	if err != nil {
		return nil, false, err
	}

	kept := m.Sections[:0]
	removed := false
	for _, sec := range m.Sections {
		if sec.ID == wasm.SectionCustom {
			name, _ := binscan.CustomName(sec.Data)
			if name == "name" || name == "sourceMappingURL" {
				removed = true
				continue
			}
		}
		kept = append(kept, sec)
	}
	if !removed {
		return data, false, nil
	}
	m.Sections = kept
	return m.Encode(), true, nil
}
