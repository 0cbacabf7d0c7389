package labels

// defaultClasses is the static vocabulary of scored diagnoses, SNOMED CT
// coded, in the fixed order used by trained models. Do not reorder: position
// is meaning.
var defaultClasses = []Class{
	{"270492004", "IAVB", "1st degree AV block"},
	{"164889003", "AF", "atrial fibrillation"},
	{"164890007", "AFL", "atrial flutter"},
	{"426627000", "Brady", "bradycardia"},
	{"713427006", "CRBBB", "complete right bundle branch block"},
	{"713426002", "IRBBB", "incomplete right bundle branch block"},
	{"445118002", "LAnFB", "left anterior fascicular block"},
	{"39732003", "LAD", "left axis deviation"},
	{"164909002", "LBBB", "left bundle branch block"},
	{"251146004", "LQRSV", "low QRS voltages"},
	{"698252002", "NSIVCB", "nonspecific intraventricular conduction disorder"},
	{"10370003", "PR", "pacing rhythm"},
	{"284470004", "PAC", "premature atrial contraction"},
	{"427172004", "PVC", "premature ventricular contractions"},
	{"164947007", "LPR", "prolonged PR interval"},
	{"111975006", "LQT", "prolonged QT interval"},
	{"164917005", "QAb", "Q wave abnormal"},
	{"47665007", "RAD", "right axis deviation"},
	{"59118001", "RBBB", "right bundle branch block"},
	{"427393009", "SA", "sinus arrhythmia"},
	{"426177001", "SB", "sinus bradycardia"},
	{"426783006", "NSR", "sinus rhythm"},
	{"427084000", "STach", "sinus tachycardia"},
	{"63593006", "SVPB", "supraventricular premature beats"},
	{"164934002", "TAb", "T wave abnormal"},
	{"59931005", "TInv", "T wave inversion"},
	{"17338001", "VPB", "ventricular premature beats"},
}

// Default returns the static vocabulary of scored classes.
func Default() *Vocabulary {
	return MustNew(defaultClasses)
}
