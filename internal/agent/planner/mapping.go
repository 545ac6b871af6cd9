package planner

import "strings"

var defaultSkills = []string{"general_maintenance"}

// requirement lists what a fault type needs from the floor.
type requirement struct {
	skills []string
	parts  []string
}

var faultRequirements = map[string]requirement{
	"curing_temperature_excessive": {
		skills: []string{"tire_curing_press", "temperature_control", "instrumentation", "electrical_systems", "plc_troubleshooting", "mold_maintenance"},
		parts:  []string{"TCP-HTR-4KW", "GEN-TS-K400"},
	},
	"curing_cycle_time_deviation": {
		skills: []string{"tire_curing_press", "plc_troubleshooting", "mold_maintenance", "bladder_replacement", "hydraulic_systems", "instrumentation"},
		parts:  []string{"TCP-BLD-800", "TCP-SEAL-200"},
	},
	"building_drum_vibration": {
		skills: []string{"tire_building_machine", "vibration_analysis", "bearing_replacement", "alignment", "precision_alignment", "drum_balancing", "mechanical_systems"},
		parts:  []string{"TBM-BRG-6220"},
	},
	"ply_tension_excessive": {
		skills: []string{"tire_building_machine", "tension_control", "servo_systems", "precision_alignment", "sensor_alignment", "plc_programming"},
		parts:  []string{"TBM-LS-500N", "TBM-SRV-5KW"},
	},
	"extruder_barrel_overheating": {
		skills: []string{"tire_extruder", "temperature_control", "rubber_processing", "screw_maintenance", "instrumentation", "electrical_systems", "motor_drives"},
		parts:  []string{"EXT-HTR-BAND", "GEN-TS-K400"},
	},
	"low_material_throughput": {
		skills: []string{"tire_extruder", "rubber_processing", "screw_maintenance", "motor_drives", "temperature_control"},
		parts:  []string{"EXT-SCR-250", "EXT-DIE-TR"},
	},
	"high_radial_force_variation": {
		skills: []string{"tire_uniformity_machine", "data_analysis", "measurement_systems", "tire_building_machine", "tire_curing_press"},
	},
	"load_cell_drift": {
		skills: []string{"tire_uniformity_machine", "load_cell_calibration", "measurement_systems", "sensor_alignment", "instrumentation"},
		parts:  []string{"TUM-LC-2KN", "TUM-ENC-5000"},
	},
	"mixing_temperature_excessive": {
		skills: []string{"banbury_mixer", "temperature_control", "rubber_processing", "instrumentation", "electrical_systems", "mechanical_systems"},
		parts:  []string{"BMX-TIP-500", "GEN-TS-K400"},
	},
	"excessive_mixer_vibration": {
		skills: []string{"banbury_mixer", "vibration_analysis", "bearing_replacement", "alignment", "mechanical_systems", "preventive_maintenance"},
		parts:  []string{"BMX-BRG-22320", "BMX-SEAL-DP"},
	},
}

// RequiredSkills returns the technician skills for faultType. The lookup is
// case-insensitive; unknown types need general maintenance only.
func RequiredSkills(faultType string) []string {
	if req, ok := faultRequirements[normalizeFaultType(faultType)]; ok {
		return append([]string(nil), req.skills...)
	}
	return append([]string(nil), defaultSkills...)
}

// RequiredParts returns the part numbers for faultType, empty when unknown.
func RequiredParts(faultType string) []string {
	if req, ok := faultRequirements[normalizeFaultType(faultType)]; ok {
		return append([]string{}, req.parts...)
	}
	return []string{}
}

func normalizeFaultType(faultType string) string {
	return strings.ToLower(strings.TrimSpace(faultType))
}
