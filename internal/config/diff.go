package config

import (
	"sort"
	"strings"

	logx "tickmux/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections, log fields
// describing the new values, and the names of hive groups that were added,
// removed or modified (sorted).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	groups := diffGroups(oldCfg.Hive.Groups, newCfg.Hive.Groups)
	if len(groups) > 0 || strings.TrimSpace(oldCfg.Hive.LostTickLogEvery) != strings.TrimSpace(newCfg.Hive.LostTickLogEvery) {
		changed = append(changed, "hive")
		attrs = append(attrs,
			logx.Int("hive.groups", len(newCfg.Hive.Groups)),
			logx.Int("hive.groups_changed", len(groups)),
		)
	}

	if oldCfg.Report != newCfg.Report {
		changed = append(changed, "report")
		attrs = append(attrs,
			logx.Bool("report.enabled", newCfg.Report.Enabled),
			logx.String("report.schedule", strings.TrimSpace(newCfg.Report.Schedule)),
		)
	}

	var oldSt, newSt StorageConfig
	if oldCfg.Storage != nil {
		oldSt = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newSt = *newCfg.Storage
	}
	if oldSt != newSt {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newSt.Driver))
	}

	return changed, attrs, groups
}

func diffGroups(oldGroups, newGroups []GroupConfig) []string {
	before := make(map[string]GroupConfig, len(oldGroups))
	for _, g := range oldGroups {
		before[strings.TrimSpace(g.Name)] = g
	}
	out := make([]string, 0)
	seen := make(map[string]struct{}, len(newGroups))
	for _, g := range newGroups {
		name := strings.TrimSpace(g.Name)
		seen[name] = struct{}{}
		prev, ok := before[name]
		if !ok || strings.TrimSpace(prev.Period) != strings.TrimSpace(g.Period) || prev.Callbacks != g.Callbacks {
			out = append(out, name)
		}
	}
	for name := range before {
		if _, ok := seen[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
