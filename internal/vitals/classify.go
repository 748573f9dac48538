package vitals

// Status labels derived from raw vitals. Classification and validity are
// independent: a value can be classified (e.g. Tachycardia) and still be
// flagged invalid when it falls outside the plausible envelope.
const (
	HeartBradycardia = "Bradycardia"
	HeartNormal      = "Normal"
	HeartTachycardia = "Tachycardia"

	TempHypothermia  = "Hypothermia"
	TempNormal       = "Normal"
	TempPyrexia      = "Pyrexia"
	TempHyperthermia = "Hyperthermia"

	OverallHealthy  = "Healthy"
	OverallWarning  = "Warning"
	OverallCritical = "Critical"
)

// Plausibility envelope for IsValid.
const (
	minPlausibleBPM   = 30.0
	maxPlausibleBPM   = 220.0
	minPlausibleTempC = 30.0
	maxPlausibleTempC = 45.0
)

// HeartStatus classifies a heart rate in bpm. nil (absent vital) yields "".
func HeartStatus(bpm *float64) string {
	if bpm == nil {
		return ""
	}
	if *bpm < 60 {
		return HeartBradycardia
	}
	if *bpm <= 100 {
		return HeartNormal
	}
	return HeartTachycardia
}

// TempStatus classifies a body temperature in Celsius. nil yields "".
// Boundaries: 36.0 and 37.5 are Normal, 40.0 is still Pyrexia.
func TempStatus(tempC *float64) string {
	if tempC == nil {
		return ""
	}
	if *tempC < 36.0 {
		return TempHypothermia
	}
	if *tempC <= 37.5 {
		return TempNormal
	}
	if *tempC <= 40.0 {
		return TempPyrexia
	}
	return TempHyperthermia
}

// OverallStatus folds the per-vital labels into the tri-state summary.
// An empty label (missing vital) counts as "not Normal": one missing vital can
// never yield Healthy, and together with a normal other vital yields Warning.
func OverallStatus(heartStatus, tempStatus string) string {
	heartNormal := heartStatus == HeartNormal
	tempNormal := tempStatus == TempNormal

	switch {
	case heartNormal && tempNormal:
		return OverallHealthy
	case !heartNormal && !tempNormal:
		return OverallCritical
	default:
		return OverallWarning
	}
}

// IsValid reports whether a reading is physiologically plausible enough to be
// committed to history. Either vital absent makes the reading invalid.
func IsValid(bpm, tempC *float64) bool {
	if bpm == nil || tempC == nil {
		return false
	}
	if *bpm <= 0 {
		return false
	}
	if *bpm < minPlausibleBPM || *bpm > maxPlausibleBPM {
		return false
	}
	if *tempC < minPlausibleTempC || *tempC > maxPlausibleTempC {
		return false
	}
	return true
}
