// Copyright 2025 Coverbridge, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package admission

import (
	"fmt"
)

// Denial reasons.
const (
	reasonBlocked = "This conversation has been restricted. Please contact support if you believe this is an error."

	reasonThrottled = "You're sending messages too quickly. Please wait a moment before sending another."

	reasonHourlyLimit = "You've reached the hourly message limit. Please take a short break and come back soon."

	reasonDailyLimit = "You've reached the daily message limit. Please return tomorrow for more insurance guidance!"

	reasonOffTopicLimit = `I appreciate your interest, but I need to maintain focus on insurance and risk management topics to best serve all users.

**Why this limit?**
This ensures I can provide quality insurance guidance to businesses that need it.

**What you can do:**
• Return with insurance or risk management questions
• Get help with business coverage needs

I'll be happy to help with any insurance-related questions when you return!`
)

// friendlyRedirect is the first off-topic warning.
func friendlyRedirect(topic, suggestion string) string {
	if topic == "" {
		topic = "something else"
	}
	text := fmt.Sprintf(`I notice you're asking about %s. I'm specifically designed to help with insurance and risk management questions for businesses.

How can I help you with:
• Business insurance coverage recommendations
• Risk assessment for your company
• Understanding different policy types
• Claims scenarios and examples

What insurance or risk management topic can I assist you with today?`, topic)

	if suggestion != "" {
		text += "\n\n" + suggestion
	}
	return text
}

// firmRedirect is the second off-topic warning.
func firmRedirect() string {
	return `I need to focus on insurance-related topics. I'm an expert in:

• Tech E&O, Cyber, D&O, and General Liability insurance
• Risk assessment for startups and enterprises
• Underwriting and claims processes
• Compliance and regulatory requirements

Please ask me about business insurance or risk management. What specific insurance question do you have?`
}

// finalWarning precedes an off-topic denial.
func finalWarning() string {
	return `**Final Notice**: To ensure I can help everyone with insurance needs, I must limit off-topic discussions.

I'm here specifically for:
✓ Business insurance guidance
✓ Risk management advice
✓ Coverage recommendations

Please keep our conversation focused on these topics. What insurance question can I answer for you?`
}
