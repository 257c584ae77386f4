// =============================================================================
// 📦 测试数据工厂 - 简历与职位描述
// =============================================================================
// 提供预定义的输入文档，用于流水线与协作者测试
// =============================================================================
package fixtures

// =============================================================================
// 📄 简历
// =============================================================================

// MinimalResume 是端到端场景使用的最小文档
const MinimalResume = "base resume text"

// StructuredResume 返回带标准段落的简历
func StructuredResume() string {
	return `Jane Q Doe
SUMMARY
Backend engineer focused on data platforms.
EXPERIENCE
- Built streaming pipelines in Go processing 2B events/day
- Migrated batch jobs to AWS Lambda & Step Functions
- Mentored 4 engineers
SKILLS
Go, SQL, Kafka
Docker
`
}

// ResumeWithoutSkills 返回没有技能段落的简历
func ResumeWithoutSkills() string {
	return `John Smith
Experience:
- Maintained billing service written in Java
`
}

// =============================================================================
// 💼 职位描述
// =============================================================================

// MinimalJob 是端到端场景使用的职位描述
const MinimalJob = "requires Python, AWS"

// BackendJob 返回多行职位描述
func BackendJob() string {
	return `Title: Senior Backend Engineer
Requires Go and Kafka
Experience with AWS; knowledge of Terraform
`
}
