package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Funnel authoring: categories, templates, funnels and their steps
			CREATE TABLE funnel_categories (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				color VARCHAR(32) NOT NULL DEFAULT '#3B82F6',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_funnel_categories_name ON funnel_categories(name);

			CREATE TABLE message_templates (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				message_type VARCHAR(16) NOT NULL CHECK (message_type IN ('sms', 'email')),
				message_category VARCHAR(255) NOT NULL DEFAULT '',
				subject TEXT,
				content TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_message_templates_category ON message_templates(message_category);
			CREATE INDEX idx_message_templates_type ON message_templates(message_type);

			CREATE TABLE sales_funnels (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category_id UUID REFERENCES funnel_categories(id) ON DELETE SET NULL,
				trigger_condition VARCHAR(64) NOT NULL,
				trigger_delay_value INTEGER NOT NULL DEFAULT 0,
				trigger_delay_unit VARCHAR(16) NOT NULL DEFAULT 'days' CHECK (trigger_delay_unit IN ('minutes', 'hours', 'days')),
				is_active BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_sales_funnels_category_id ON sales_funnels(category_id);
			CREATE INDEX idx_sales_funnels_trigger ON sales_funnels(trigger_condition, is_active);
			CREATE INDEX idx_sales_funnels_created_at ON sales_funnels(created_at);

			CREATE TABLE funnel_steps (
				id UUID PRIMARY KEY,
				funnel_id UUID NOT NULL REFERENCES sales_funnels(id) ON DELETE CASCADE,
				step_number INTEGER NOT NULL CHECK (step_number > 0),
				message_id UUID NOT NULL REFERENCES message_templates(id),
				message_type VARCHAR(16) NOT NULL CHECK (message_type IN ('sms', 'email')),
				delay_value INTEGER NOT NULL DEFAULT 0 CHECK (delay_value >= 0),
				delay_unit VARCHAR(16) NOT NULL DEFAULT 'days' CHECK (delay_unit IN ('minutes', 'hours', 'days')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_funnel_steps_funnel ON funnel_steps(funnel_id, step_number);
		`,
		2: `
			-- Enrollments and their materialized executions. Executions keep the step id
			-- without a foreign key so later step edits never touch them.
			CREATE TABLE customer_funnel_enrollments (
				id UUID PRIMARY KEY,
				customer_id VARCHAR(255) NOT NULL,
				rental_id VARCHAR(255),
				funnel_id UUID NOT NULL REFERENCES sales_funnels(id) ON DELETE CASCADE,
				enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed', 'paused', 'cancelled')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_enrollments_funnel ON customer_funnel_enrollments(funnel_id);
			CREATE INDEX idx_enrollments_status ON customer_funnel_enrollments(status);
			CREATE INDEX idx_enrollments_enrolled_at ON customer_funnel_enrollments(enrolled_at);

			CREATE TABLE funnel_step_executions (
				id UUID PRIMARY KEY,
				enrollment_id UUID NOT NULL REFERENCES customer_funnel_enrollments(id) ON DELETE CASCADE,
				funnel_step_id UUID NOT NULL,
				scheduled_date TIMESTAMP WITH TIME ZONE NOT NULL,
				executed_date TIMESTAMP WITH TIME ZONE,
				status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'sent', 'failed', 'skipped')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_executions_enrollment ON funnel_step_executions(enrollment_id);
			CREATE INDEX idx_executions_queue ON funnel_step_executions(status, scheduled_date);
		`,
	}
}
