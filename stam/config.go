package stam

// Config is the immutable configuration of a store. It is copied at
// construction and never changes afterwards.
type Config struct {
	// UseInclude splits substores into separate files on serialization.
	// The core only carries the flag for its serialization collaborator.
	UseInclude bool `mapstructure:"use_include" json:"use_include" yaml:"use_include" toml:"use_include"`
	// Debug logs every mutation at debug level.
	Debug bool `mapstructure:"debug" json:"debug" yaml:"debug" toml:"debug"`

	AnnotationAnnotationMap bool `mapstructure:"annotation_annotation_map" json:"annotation_annotation_map" yaml:"annotation_annotation_map" toml:"annotation_annotation_map"`
	ResourceAnnotationMap   bool `mapstructure:"resource_annotation_map" json:"resource_annotation_map" yaml:"resource_annotation_map" toml:"resource_annotation_map"`
	DataSetAnnotationMap    bool `mapstructure:"dataset_annotation_map" json:"dataset_annotation_map" yaml:"dataset_annotation_map" toml:"dataset_annotation_map"`
	KeyAnnotationMap        bool `mapstructure:"key_annotation_map" json:"key_annotation_map" yaml:"key_annotation_map" toml:"key_annotation_map"`
	DataAnnotationMap       bool `mapstructure:"data_annotation_map" json:"data_annotation_map" yaml:"data_annotation_map" toml:"data_annotation_map"`
	// TextRelationMap maintains the per-resource position index.
	TextRelationMap bool `mapstructure:"textrelationmap" json:"textrelationmap" yaml:"textrelationmap" toml:"textrelationmap"`

	// GenerateIDs assigns random public IDs to bulk-loaded entities that have none.
	GenerateIDs bool `mapstructure:"generate_ids" json:"generate_ids" yaml:"generate_ids" toml:"generate_ids"`
	// StripTempIDs drops temporary "!A12"-style IDs on bulk load instead of binding them.
	StripTempIDs bool `mapstructure:"strip_temp_ids" json:"strip_temp_ids" yaml:"strip_temp_ids" toml:"strip_temp_ids"`
	// ShrinkToFit compacts arenas and indices after a bulk load.
	ShrinkToFit bool `mapstructure:"shrink_to_fit" json:"shrink_to_fit" yaml:"shrink_to_fit" toml:"shrink_to_fit"`
	// MilestoneInterval is the codepoint sampling density of the byte index.
	MilestoneInterval int `mapstructure:"milestone_interval" json:"milestone_interval" yaml:"milestone_interval" toml:"milestone_interval"`
	// NormalizeNFC normalizes resource text to Unicode NFC on ingestion.
	NormalizeNFC bool `mapstructure:"normalize_nfc" json:"normalize_nfc" yaml:"normalize_nfc" toml:"normalize_nfc"`
}

// DefaultConfig enables every index.
func DefaultConfig() Config {
	return Config{
		UseInclude:              false,
		AnnotationAnnotationMap: true,
		ResourceAnnotationMap:   true,
		DataSetAnnotationMap:    true,
		KeyAnnotationMap:        true,
		DataAnnotationMap:       true,
		TextRelationMap:         true,
		GenerateIDs:             false,
		StripTempIDs:            true,
		ShrinkToFit:             true,
		MilestoneInterval:       100,
	}
}

// AlignmentConfig drives the transposition bridge.
type AlignmentConfig struct {
	CaseSensitive bool `mapstructure:"case_sensitive" json:"case_sensitive" yaml:"case_sensitive" toml:"case_sensitive"`
	// Trim strips leading and trailing whitespace from aligned segments.
	Trim bool `mapstructure:"trim" json:"trim" yaml:"trim" toml:"trim"`
	// SimpleOnly keeps only the single longest segment of each pair.
	SimpleOnly         bool   `mapstructure:"simple_only" json:"simple_only" yaml:"simple_only" toml:"simple_only"`
	AnnotationIDPrefix string `mapstructure:"annotation_id_prefix" json:"annotation_id_prefix" yaml:"annotation_id_prefix" toml:"annotation_id_prefix"`
	// MaxErrors rejects a pair whose aligner reports more errors. Zero disables the check.
	MaxErrors int `mapstructure:"max_errors" json:"max_errors" yaml:"max_errors" toml:"max_errors"`
	// MinimalAlignLength drops segments shorter than this many codepoints.
	MinimalAlignLength int  `mapstructure:"minimal_align_length" json:"minimal_align_length" yaml:"minimal_align_length" toml:"minimal_align_length"`
	Grow               bool `mapstructure:"grow" json:"grow" yaml:"grow" toml:"grow"`
	Verbose            bool `mapstructure:"verbose" json:"verbose" yaml:"verbose" toml:"verbose"`
	// Workers bounds concurrent aligner calls. Zero means one per pair.
	Workers int `mapstructure:"workers" json:"workers" yaml:"workers" toml:"workers"`
}

// DefaultAlignmentConfig mirrors the defaults of the alignment tooling.
func DefaultAlignmentConfig() AlignmentConfig {
	return AlignmentConfig{
		CaseSensitive:      true,
		Trim:               false,
		AnnotationIDPrefix: "transposition-",
		MinimalAlignLength: 0,
	}
}
