package models

type PoseJoint struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
	Visible    bool    `json:"visible"`
}

type PoseConnection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type PoseFrame struct {
	ID          int64            `json:"id"`
	Timestamp   int64            `json:"timestamp"`
	Joints      []PoseJoint      `json:"joints"`
	Connections []PoseConnection `json:"connections"`
	Confidence  float64          `json:"confidence"`
}
