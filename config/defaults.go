package config

import (
	"github.com/spf13/viper"

	"github.com/teranos/stam/stam"
)

// SetDefaults configures default values for all configuration options.
// Every key gets a default so STAM_* variables bind through AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	store := stam.DefaultConfig()
	v.SetDefault("store.use_include", store.UseInclude)
	v.SetDefault("store.debug", store.Debug)
	v.SetDefault("store.annotation_annotation_map", store.AnnotationAnnotationMap)
	v.SetDefault("store.resource_annotation_map", store.ResourceAnnotationMap)
	v.SetDefault("store.dataset_annotation_map", store.DataSetAnnotationMap)
	v.SetDefault("store.key_annotation_map", store.KeyAnnotationMap)
	v.SetDefault("store.data_annotation_map", store.DataAnnotationMap)
	v.SetDefault("store.textrelationmap", store.TextRelationMap)
	v.SetDefault("store.generate_ids", store.GenerateIDs)
	v.SetDefault("store.strip_temp_ids", store.StripTempIDs)
	v.SetDefault("store.shrink_to_fit", store.ShrinkToFit)
	v.SetDefault("store.milestone_interval", store.MilestoneInterval) // codepoints between byte milestones
	v.SetDefault("store.normalize_nfc", store.NormalizeNFC)

	align := stam.DefaultAlignmentConfig()
	v.SetDefault("alignment.case_sensitive", align.CaseSensitive)
	v.SetDefault("alignment.trim", align.Trim)
	v.SetDefault("alignment.simple_only", align.SimpleOnly)
	v.SetDefault("alignment.annotation_id_prefix", align.AnnotationIDPrefix)
	v.SetDefault("alignment.max_errors", align.MaxErrors)
	v.SetDefault("alignment.minimal_align_length", align.MinimalAlignLength)
	v.SetDefault("alignment.grow", align.Grow)
	v.SetDefault("alignment.verbose", align.Verbose)
	v.SetDefault("alignment.workers", align.Workers) // 0 = one per pair

	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)
}
