package config

type WorkerKeyStruct struct {
	PersistAnswerAuditQueue string
	PersistResultsQueue     string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswerAuditQueue: "persist_answer_audit_queue",
	PersistResultsQueue:     "persist_results_queue",
}
