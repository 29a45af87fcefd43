package chains

import "sort"

// Initcode size thresholds in bytes
const (
	NetworkInitcodeLimit = 131072 // node-enforced initcode cap
	LargeInitcode        = 65536
	EIP170Limit          = 24576
	// DefaultSizeTarget is the deployment size at which the ecosystem first hit the network limit
	DefaultSizeTarget = 118666
	// OversizedContract marks contracts worth splitting
	OversizedContract = 50000
)

// SizeClass buckets an initcode size against the thresholds
type SizeClass string

// Size classes, largest first
const (
	SizeOverLimit SizeClass = "over network limit"
	SizeLarge     SizeClass = "large"
	SizeOverEIP   SizeClass = "over EIP-170"
	SizeOK        SizeClass = "ok"
)

// ClassifySize returns the class of an initcode size
func ClassifySize(size int) SizeClass {
	switch {
	case size > NetworkInitcodeLimit:
		return SizeOverLimit
	case size > LargeInitcode:
		return SizeLarge
	case size > EIP170Limit:
		return SizeOverEIP
	}
	return SizeOK
}

// ContractSize is the initcode size of one artifact
type ContractSize struct {
	Name         string    `json:"name"`
	SourcePath   string    `json:"sourcePath,omitempty"`
	InitcodeSize int       `json:"initcodeSize"`
	RuntimeSize  int       `json:"runtimeSize"`
	Class        SizeClass `json:"class"`
}

// SizeReport is the result of a deployment size analysis
type SizeReport struct {
	Contracts []ContractSize `json:"contracts"`
	Total     int            `json:"total"`
	Target    int            `json:"target"`
	// Combination is the shortest prefix of the largest contracts whose sum reaches Target.
	// Empty when the whole set stays below it.
	Combination     []ContractSize `json:"combination"`
	CombinationSize int            `json:"combinationSize"`
	// Largest is the biggest contract; LargestShare is its size as a fraction of Target
	Largest      *ContractSize  `json:"largest,omitempty"`
	LargestShare float64        `json:"largestShare"`
	OverEIP170   []ContractSize `json:"overEip170"`
}

// AnalyzeSizes ranks artifacts by initcode size and finds the combination of
// the largest contracts that first reaches target. target <= 0 uses DefaultSizeTarget.
func AnalyzeSizes(artifacts []*Artifact, target int) *SizeReport {
	if target <= 0 {
		target = DefaultSizeTarget
	}
	r := &SizeReport{
		Target:      target,
		Contracts:   make([]ContractSize, 0, len(artifacts)),
		Combination: []ContractSize{},
		OverEIP170:  []ContractSize{},
	}

	for _, a := range artifacts {
		size := a.InitcodeSize()
		r.Contracts = append(r.Contracts, ContractSize{
			Name:         a.Name,
			SourcePath:   a.SourcePath,
			InitcodeSize: size,
			RuntimeSize:  a.RuntimeSize(),
			Class:        ClassifySize(size),
		})
		r.Total += size
	}
	sort.SliceStable(r.Contracts, func(i, j int) bool {
		return r.Contracts[i].InitcodeSize > r.Contracts[j].InitcodeSize
	})

	sum := 0
	for i, c := range r.Contracts {
		sum += c.InitcodeSize
		if sum >= target {
			r.Combination = append(r.Combination, r.Contracts[:i+1]...)
			r.CombinationSize = sum
			break
		}
	}

	if len(r.Contracts) > 0 {
		largest := r.Contracts[0]
		r.Largest = &largest
		r.LargestShare = float64(largest.InitcodeSize) / float64(target)
	}
	for _, c := range r.Contracts {
		if c.InitcodeSize > EIP170Limit {
			r.OverEIP170 = append(r.OverEIP170, c)
		}
	}
	return r
}
